package commands

import (
	"github.com/iov-one/flowtree/x/stream"
	"github.com/spf13/cobra"
)

func (c *cli) newIssueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issue <address> <amount>",
		Short: "Mint value to an account, signed by the stream configuration owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return c.deliver(&stream.IssueMsg{Destination: addr, Amount: amount})
		},
	}
}

func (c *cli) newTickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Settle all streams up to the block time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := c.blockTime()
			if err != nil {
				return err
			}
			a, err := c.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, id, err := a.Tick(now)
			if err != nil {
				return err
			}
			return c.print(deliverOutput{Version: id.Version, Tags: res.Tags})
		},
	}
}
