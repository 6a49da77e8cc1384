package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hackrun/internal/asm"
	"github.com/roach88/hackrun/internal/fsys"
	"github.com/roach88/hackrun/internal/loader"
)

// AsmOptions holds flags for the asm command.
type AsmOptions struct {
	*RootOptions
	Output string // output file path
	Disasm bool   // decode an image into assembly instead
}

// AsmResult is the JSON payload of the asm command.
type AsmResult struct {
	Words  int    `json:"words"`
	Output string `json:"output,omitempty"`
	Text   string `json:"text,omitempty"`
}

// NewAsmCommand creates the asm command.
func NewAsmCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AsmOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "asm <file>",
		Short: "Assemble Hack assembly to .hack text",
		Long: `Assemble a Hack assembly file into .hack text (one 16-digit binary word per
line). With --disasm, decode an image (.hack, .asm or binary) into one
assembly instruction per word instead.

Examples:
  hackrun asm Max.asm
  hackrun asm Max.asm -o Max.hack
  hackrun asm --disasm Max.hack`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsm(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().BoolVar(&opts.Disasm, "disasm", false, "disassemble an image")

	return cmd
}

func runAsm(opts *AsmOptions, file string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(file)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read "+file, err)
	}

	var words []int16
	if opts.Disasm {
		words, err = loader.Decode(filepath.Base(file), data)
	} else {
		words, err = asm.Assemble(fsys.DecodeText(data))
	}
	if err != nil {
		var details any
		var ae *asm.Error
		if errors.As(err, &ae) {
			details = map[string]int{"line": ae.Line}
		}
		_ = formatter.Error(ErrCodeAssemble, err.Error(), details)
		return WrapExitError(ExitFailure, "failed to assemble "+file, err)
	}
	formatter.VerboseLog("%s: %d word(s)", file, len(words))

	text := asm.Binary(words)
	if opts.Disasm {
		var b strings.Builder
		for _, w := range words {
			b.WriteString(asm.Disassemble(w))
			b.WriteByte('\n')
		}
		text = b.String()
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(text), 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	}

	if opts.Format == "json" {
		res := AsmResult{Words: len(words), Output: opts.Output}
		if opts.Output == "" {
			res.Text = text
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(CLIResponse{Status: "ok", Data: res})
	}
	if opts.Output != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d word(s) to %s\n", len(words), opts.Output)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	return nil
}
