package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/hackrun/internal/fsys"
	"github.com/roach88/hackrun/internal/tst"
)

// CheckError is one script syntax error.
type CheckError struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// CheckFile is the check result of one script.
type CheckFile struct {
	File  string `json:"file"`
	Valid bool   `json:"valid"`

	// Steps is -1 when the step count depends on run-time state.
	Steps int `json:"steps"`
}

// CheckResult holds check results.
type CheckResult struct {
	Valid  bool         `json:"valid"`
	Files  []CheckFile  `json:"files"`
	Errors []CheckError `json:"errors,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file.tst>...",
		Short: "Parse test scripts without running them",
		Long: `Parse test scripts and report syntax errors with line and column.

Nothing is loaded or executed, so check works without the image a script
refers to.

Exit codes:
  0 - All scripts parsed
  1 - One or more scripts have syntax errors
  2 - Command error (file not found, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result := CheckResult{Valid: true, Files: make([]CheckFile, 0, len(files))}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to read "+file, err)
		}
		formatter.VerboseLog("Checking %s", file)

		script, err := tst.Parse(fsys.DecodeText(data))
		if err != nil {
			result.Valid = false
			result.Files = append(result.Files, CheckFile{File: file})
			result.Errors = append(result.Errors, checkError(file, err))
			continue
		}
		result.Files = append(result.Files, CheckFile{File: file, Valid: true, Steps: script.Steps()})
	}

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeParse, Message: fmt.Sprintf("%d script(s) failed to parse", len(result.Errors))}
		}
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(resp); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, e := range result.Errors {
			fmt.Fprintf(w, "%s:%d:%d: %s\n", e.File, e.Line, e.Col, e.Message)
		}
		for _, f := range result.Files {
			switch {
			case !f.Valid:
			case f.Steps < 0:
				fmt.Fprintf(w, "✓ %s (unbounded)\n", f.File)
			default:
				fmt.Fprintf(w, "✓ %s (%d steps)\n", f.File, f.Steps)
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d script(s) failed to parse", len(result.Errors)))
	}
	return nil
}

func checkError(file string, err error) CheckError {
	var pe *tst.ParseError
	if errors.As(err, &pe) {
		return CheckError{File: file, Line: pe.Line, Col: pe.Col, Message: pe.Message, Code: ErrCodeParse}
	}
	return CheckError{File: file, Message: err.Error(), Code: ErrCodeParse}
}
