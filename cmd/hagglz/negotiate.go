package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/agenthands/hagglz/internal/config"
	"github.com/agenthands/hagglz/internal/core/model"
	"github.com/spf13/cobra"
)

func newNegotiateCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		file, text, company, userID string
		amount                       float64
	)
	cmd := &cobra.Command{
		Use:   "negotiate",
		Short: "Run one bill through the negotiation workflow and print the result as JSON",
		Example: `  hagglz negotiate --file bill.txt
  hagglz negotiate --text "Verizon Wireless ... Total $85.00" --company Verizon --amount 85`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (text == "") {
				return errors.New("exactly one of --file or --text is required")
			}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read bill: %w", err)
				}
				text = string(data)
			}
			bill := model.BillRecord{OCRText: text, Company: company, Amount: amount, UserID: userID}

			cfg, err := load()
			if err != nil {
				return err
			}
			n, closer, err := buildNegotiator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			res := n.Negotiate(cmd.Context(), bill)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if res.Failed() {
				return fmt.Errorf("negotiation failed: %s", res.Error)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "file holding the OCR text of the bill")
	f.StringVarP(&text, "text", "t", "", "OCR text of the bill")
	f.StringVar(&company, "company", "", "company name, if known")
	f.Float64Var(&amount, "amount", 0, "amount due, if known")
	f.StringVar(&userID, "user", "cli", "user id recorded with the result")
	return cmd
}
