package commands

import (
	"os"

	"juris-robot/lib/idvalidate"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkIdCmd)
}

var checkIdCmd = &cobra.Command{
	Use:   "check-id <document> [document...]",
	Short: "Validates the check digits of CPF/CNPJ documents.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Document", "Digits", "Kind", "Valid"})
		for _, arg := range args {
			digits := idvalidate.Digits(arg)
			kind := "?"
			valid := false
			switch len(digits) {
			case 11:
				kind = "CPF"
				valid = idvalidate.CPF(arg)
			case 14:
				kind = "CNPJ"
				valid = idvalidate.CNPJ(arg)
			}
			t.AppendRow(table.Row{arg, digits, kind, valid})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
