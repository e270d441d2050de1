// Package process runs short-lived subprocesses with captured output.
//
// Features:
//   - stdout, stderr and exit status captured per run
//   - output capped per stream
//   - process-group kill when the context is cancelled or times out
//
// Example usage:
//
//	runner := process.NewRunner(64 << 10)
//	runner.SetLogger(log)
//
//	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
//	defer cancel()
//	res, err := runner.Run(ctx, process.Command{
//	    Name:   "automation-7",
//	    Binary: "/bin/sh",
//	    Args:   []string{"-c", "df -h"},
//	})
package process
