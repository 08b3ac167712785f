package commands

import (
	"os"

	"juris-robot/lib/configutil"
	"juris-robot/lib/util/serviceutil"
	"juris-robot/services/ingest"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var recordsConfig *string

func init() {
	recordsConfig = recordsCmd.Flags().String("config", "config.json5", "The configuration file holding the sink url.")
	rootCmd.AddCommand(recordsCmd)
}

var recordsCmd = &cobra.Command{
	Use:   "records [--config <path/to/config.json5>]",
	Short: "Lists the records the ingestion backend currently holds.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config](*recordsConfig)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		client := ingest.NewClient(cfg.Sink.Url)
		stored, err := client.List(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list records", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Processo", "Réu", "CPF/CNPJ", "Valor"})
		for _, record := range stored {
			t.AppendRow(table.Row{
				record.ID,
				record.NumeroProcesso,
				record.NomeReu,
				record.CpfCnpjReu,
				record.ValorCausa,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
