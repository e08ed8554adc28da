package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"gridpointer/display"
	"gridpointer/input"
)

func addDevices(topLevel *cobra.Command) {
	root := display.DefaultRoot
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List input devices and display outputs.",
		Example: `
gridpointer devices
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			printInputs(input.Discover())
			outputs, err := display.Outputs(os.DirFS(root))
			if err != nil {
				_, _ = fmt.Fprintf(color.Output, "\ndisplays: %v\n", err)
				return nil
			}
			printOutputs(outputs)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "drm-root", display.DefaultRoot, "DRM sysfs directory.")

	topLevel.AddCommand(cmd)
}

func printInputs(infos []input.DeviceInfo) {
	bold := color.New(color.Bold)
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 48
	tbl.AddRow(bold.Sprint("Path"), bold.Sprint("Name"), bold.Sprint("Class"), bold.Sprint("Status"))
	for _, d := range infos {
		status := ok.Sprint("ok")
		if d.Err != nil {
			status = bad.Sprint(d.Err.Error())
		}
		tbl.AddRow(d.Path, d.Name, string(d.Class), status)
	}
	if len(infos) == 0 {
		tbl.AddRow("-", "no input devices found", "", "")
	}
	_, _ = fmt.Fprintln(color.Output, tbl)

	if auto := input.AutoDetect(infos); len(auto) > 0 {
		_, _ = fmt.Fprintf(color.Output, "auto-detect would use %v\n", auto)
	}
}

func printOutputs(outputs []display.Output) {
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Output"), bold.Sprint("Connected"), bold.Sprint("Size"))
	for _, o := range outputs {
		connected := color.New(color.FgRed).Sprint("no")
		if o.Connected {
			connected = color.New(color.FgGreen).Sprint("yes")
		}
		size := "-"
		if o.Size.Width > 0 {
			size = fmt.Sprintf("%.0fx%.0f", o.Size.Width, o.Size.Height)
		}
		tbl.AddRow(o.Name, connected, size)
	}
	_, _ = fmt.Fprintln(color.Output)
	_, _ = fmt.Fprintln(color.Output, tbl)
}
