package cli

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
)

func newMoneyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "money",
		Short: "Balance commands",
	}

	cmd.AddCommand(newMoneyChangeCmd("add", "Add money to a player", http.MethodPost, "add"))
	cmd.AddCommand(newMoneyChangeCmd("subtract", "Subtract money from a player", http.MethodPost, "subtract"))
	cmd.AddCommand(newMoneyChangeCmd("set", "Set a player's balance", http.MethodPut, "balance"))

	return cmd
}

func newMoneyChangeCmd(name, short, method, route string) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   name + " <id> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePlayerID(args[0])
			if err != nil {
				return err
			}
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}

			req := map[string]any{"amount": amount}
			if description != "" {
				req["description"] = description
			}

			var result BalanceResult
			if err := client.Do(method, fmt.Sprintf("/players/%d/%s", id, route), req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Transaction description")

	return cmd
}
