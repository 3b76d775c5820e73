package commands

import (
	"github.com/iov-one/flowtree/x/flow"
	"github.com/spf13/cobra"
)

func (c *cli) newAddRecipientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-recipient <node id> <address>",
		Short: "Add an external recipient to a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeID, err := parseID(args[0])
			if err != nil {
				return err
			}
			addr, err := parseAddress(args[1])
			if err != nil {
				return err
			}
			metadata, _ := cmd.Flags().GetString("metadata")
			return c.deliver(&flow.AddRecipientMsg{NodeID: nodeID, Address: addr, Metadata: metadata})
		},
	}
	cmd.Flags().String("metadata", "", "free form description of the recipient")
	return cmd
}

func (c *cli) newAddChildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-child <node id> <child node id>",
		Short: "Add a node as a recipient of another node",
		Long:  "Add a node as a recipient of another node. Both managers must be given with --as.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeID, err := parseID(args[0])
			if err != nil {
				return err
			}
			childID, err := parseID(args[1])
			if err != nil {
				return err
			}
			metadata, _ := cmd.Flags().GetString("metadata")
			return c.deliver(&flow.AddChildRecipientMsg{NodeID: nodeID, ChildNodeID: childID, Metadata: metadata})
		},
	}
	cmd.Flags().String("metadata", "", "free form description of the child")
	return cmd
}

func (c *cli) newRemoveRecipientCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-recipient <node id> <recipient id>",
		Short: "Remove a recipient from a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeID, err := parseID(args[0])
			if err != nil {
				return err
			}
			recipientID, err := parseID(args[1])
			if err != nil {
				return err
			}
			return c.deliver(&flow.RemoveRecipientMsg{NodeID: nodeID, RecipientID: recipientID})
		},
	}
}

func (c *cli) newAllocateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocate <node id> <recipient id>=<basis points>...",
		Short: "Allocate the weight of the first --as condition between recipients",
		Long: `Allocate the weight of the first --as condition between recipients of a
node. Shares must add up to 100%.

With --witness the previous allocation must be repeated using --prev-weight
and --prev.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			nodeID, err := parseID(args[0])
			if err != nil {
				return err
			}
			ids, bps, err := parseShares(args[1:])
			if err != nil {
				return err
			}
			index, _ := flags.GetUint32("strategy")
			var aux []byte
			if raw, _ := flags.GetString("aux"); raw != "" {
				if aux, err = parseID(raw); err != nil {
					return err
				}
			}

			if witness, _ := flags.GetBool("witness"); !witness {
				return c.deliver(&flow.AllocateMsg{
					NodeID:        nodeID,
					StrategyIndex: index,
					AuxData:       aux,
					RecipientIDs:  ids,
					BasisPoints:   bps,
				})
			}
			prevWeight, _ := flags.GetInt64("prev-weight")
			prev, _ := flags.GetStringArray("prev")
			prevIDs, prevBps, err := parseShares(prev)
			if err != nil {
				return err
			}
			return c.deliver(&flow.AllocateWithWitnessMsg{
				NodeID:           nodeID,
				StrategyIndex:    index,
				AuxData:          aux,
				RecipientIDs:     ids,
				BasisPoints:      bps,
				PrevWeight:       prevWeight,
				PrevRecipientIDs: prevIDs,
				PrevBasisPoints:  prevBps,
			})
		},
	}
	flags := cmd.Flags()
	flags.Uint32("strategy", 0, "index of the node strategy to allocate with")
	flags.String("aux", "", "hex encoded strategy data")
	flags.Bool("witness", false, "verify the previous allocation given with --prev-weight and --prev")
	flags.Int64("prev-weight", 0, "weight of the previous allocation")
	flags.StringArray("prev", nil, "previous <recipient id>=<basis points>, can be repeated")
	return cmd
}

func (c *cli) newDrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain <node id>",
		Short: "Push pending rate changes to the children of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeID, err := parseID(args[0])
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt64("cap")
			return c.deliver(&flow.DrainChildUpdatesMsg{NodeID: nodeID, Cap: limit})
		},
	}
	cmd.Flags().Int64("cap", 0, "maximum number of children to process, the configured cap when 0")
	return cmd
}
