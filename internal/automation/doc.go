// Package automation holds the versioned catalog of operational scripts.
//
// Each Automation pairs a natural-language question and free-form tags with
// a shell or Lua script. Every script change appends an immutable
// VersionRecord; the content hash of the current script is kept alongside it.
//
// Architecture:
//
//	┌──────────────────────────────────────────────┐
//	│                Store (store.go)              │
//	│  in-memory Catalog + ID index, one mutex     │
//	│        │ whole-catalog rewrite per mutation  │
//	│        ▼                                     │
//	│  ┌──────────────────┐  ┌──────────────────┐  │
//	│  │   FileBackend    │  │   BoltBackend    │  │
//	│  │ JSON + rename    │  │ bbolt, one tx    │  │
//	│  └──────────────────┘  └──────────────────┘  │
//	└──────────────────────────────────────────────┘
//
// # Thread Safety
//
// Store is safe for concurrent use. IDs are assigned as count+1 under the
// store mutex; automations are never deleted, so IDs never repeat.
//
// # Usage
//
//	store := automation.NewStore(automation.NewFileBackend("data/automations.json"))
//	store.SetLogger(log)
//	if err := store.Load(ctx); err != nil {
//	    return err
//	}
//
//	a, err := store.Add(ctx, automation.NewAutomation{
//	    Question:   "check disk usage",
//	    Script:     "df -h",
//	    Tags:       []string{"system"},
//	    ScriptType: automation.ScriptShell,
//	    CreatedBy:  "alice",
//	})
package automation
