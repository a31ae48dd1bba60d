package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/usepat/SW-soniccontrol/internal/protocols"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// ProtocolSummary is one row of the protocols listing.
type ProtocolSummary struct {
	Key         string `json:"key"`
	Device      string `json:"device"`
	Version     string `json:"version"`
	Build       string `json:"build"`
	Commands    int    `json:"commands"`
	Answers     int    `json:"answers"`
	Unsupported int    `json:"unsupported"`
}

// NewProtocolsCommand creates the protocols command.
func NewProtocolsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "protocols",
		Short: "List the known protocol descriptors",
		Long: `List every protocol descriptor in the registry, ordered by device,
version and build.

Examples:
  sonicproto protocols
  sonicproto protocols --tables ./tables --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProtocols(rootOpts, cmd)
		},
	}
}

func runProtocols(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	reg, err := withRegistry(opts, f, newLogger(opts, cmd))
	if err != nil {
		return err
	}

	rows := make([]ProtocolSummary, 0, reg.Len())
	for _, d := range reg.Descriptors() {
		rows = append(rows, ProtocolSummary{
			Key:         d.Key().String(),
			Device:      d.Device().String(),
			Version:     d.Version().String(),
			Build:       d.Build().String(),
			Commands:    len(d.Commands()),
			Answers:     len(d.Answers()),
			Unsupported: len(d.Unsupported()),
		})
	}

	if f.IsJSON() {
		return f.Success(rows)
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tCOMMANDS\tANSWERS\tUNSUPPORTED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", r.Key, r.Commands, r.Answers, r.Unsupported)
	}
	return tw.Flush()
}

// ParamView describes a command parameter.
type ParamView struct {
	Name string `json:"name"`
	Role string `json:"role"`
	Type string `json:"type"`
}

// CommandView describes a supported command and its answer.
type CommandView struct {
	Code    uint16      `json:"code"`
	Name    string      `json:"name"`
	Aliases []string    `json:"aliases"`
	Params  []ParamView `json:"params"`
	Answer  []ParamView `json:"answer"`
}

// DescriptorView is the show command's output.
type DescriptorView struct {
	Key         string        `json:"key"`
	Options     string        `json:"options,omitempty"`
	Commands    []CommandView `json:"commands"`
	Errors      []CommandView `json:"errors"`
	Unsupported []string      `json:"unsupported"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <device/vX.Y.Z/build>",
		Short: "Show the commands and answers of a protocol",
		Long: `Show every supported command of a protocol descriptor with its aliases,
parameters and answer fields, followed by the error answers and the commands
the version marks as unsupported.

Examples:
  sonicproto show mvp_worker/v1.0.0/release
  sonicproto show descale/v2.0.0/debug --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}
}

func runShow(opts *RootOptions, key string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	_, desc, err := withDescriptor(opts, f, newLogger(opts, cmd), key)
	if err != nil {
		return err
	}

	view := describe(desc)
	if f.IsJSON() {
		return f.Success(view)
	}

	w := f.Writer
	fmt.Fprintf(w, "%s\n", view.Key)
	if view.Options != "" {
		fmt.Fprintf(w, "options: %s\n", view.Options)
	}
	fmt.Fprintln(w)
	for _, c := range view.Commands {
		fmt.Fprintf(w, "%5d %s %v\n", c.Code, c.Name, c.Aliases)
		for _, p := range c.Params {
			fmt.Fprintf(w, "        %s %s: %s\n", p.Role, p.Name, p.Type)
		}
		for _, a := range c.Answer {
			fmt.Fprintf(w, "        -> %s: %s\n", a.Name, a.Type)
		}
	}
	if len(view.Errors) > 0 {
		fmt.Fprintln(w, "\nerrors:")
		for _, e := range view.Errors {
			fmt.Fprintf(w, "%5d %s\n", e.Code, e.Name)
		}
	}
	if len(view.Unsupported) > 0 {
		fmt.Fprintf(w, "\nunsupported: %v\n", view.Unsupported)
	}
	return nil
}

func describe(desc *schema.ProtocolDescriptor) DescriptorView {
	view := DescriptorView{
		Key:         desc.Key().String(),
		Options:     desc.Options(),
		Commands:    []CommandView{},
		Errors:      []CommandView{},
		Unsupported: []string{},
	}
	for _, c := range desc.Commands() {
		cv := CommandView{
			Code:    uint16(c.Code),
			Name:    protocols.CodeName(c.Code),
			Aliases: c.Aliases,
			Params:  []ParamView{},
			Answer:  []ParamView{},
		}
		for _, p := range c.Params {
			cv.Params = append(cv.Params, ParamView{Name: string(p.Name), Role: p.Role.String(), Type: p.Type.String()})
		}
		if a, err := desc.Answer(c.Code); err == nil {
			for _, fd := range a.Fields {
				cv.Answer = append(cv.Answer, ParamView{Name: string(fd.Name), Role: "answer", Type: fd.Type.String()})
			}
		}
		view.Commands = append(view.Commands, cv)
	}
	for _, a := range desc.Answers() {
		if a.Code.IsError() {
			view.Errors = append(view.Errors, CommandView{Code: uint16(a.Code), Name: protocols.CodeName(a.Code), Aliases: []string{}, Params: []ParamView{}, Answer: []ParamView{}})
		}
	}
	for _, code := range desc.Unsupported() {
		view.Unsupported = append(view.Unsupported, protocols.CodeName(code))
	}
	return view
}
