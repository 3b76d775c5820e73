package commands

import (
	"encoding/hex"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/x/flow"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// deliverOutput is printed for every delivered message.
type deliverOutput struct {
	Version int64          `json:"version"`
	Data    string         `json:"data,omitempty"`
	Log     string         `json:"log,omitempty"`
	Tags    []flowtree.Tag `json:"tags,omitempty"`
}

// deliver runs msg against the latest state at the block time and commits
// the result as a new version.
func (c *cli) deliver(msg flowtree.Msg) error {
	now, err := c.blockTime()
	if err != nil {
		return err
	}
	a, err := c.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, id, err := a.Deliver(now, msg)
	if err != nil {
		return err
	}
	c.logger.Info("delivered", "path", msg.Path(), "version", id.Version)
	return c.print(deliverOutput{
		Version: id.Version,
		Data:    hex.EncodeToString(res.Data),
		Log:     res.Log,
		Tags:    res.Tags,
	})
}

func addNodeConfigFlags(flags *pflag.FlagSet) {
	flags.String("baseline", "100%", "part of the rate shared equally by all recipients")
	flags.String("reward", "0", "part of the rate streamed to the reward target")
	flags.String("quorum", "100%", "part of the allocation weight needed for the full bonus rate")
	flags.String("reward-target", "", "address receiving the reward stream")
}

// nodeConfigFlags reads the node configuration flags. When base is given,
// flags that were not set keep its values.
func nodeConfigFlags(flags *pflag.FlagSet, base *flow.NodeConfig, baseTarget flowtree.Address) (*flow.NodeConfig, flowtree.Address, error) {
	var conf flow.NodeConfig
	if base != nil {
		conf = *base
	}
	for name, dst := range map[string]*flowtree.BasisPoints{
		"baseline": &conf.BaselinePercent,
		"reward":   &conf.RewardPercent,
		"quorum":   &conf.QuorumPercent,
	} {
		if base != nil && !flags.Changed(name) {
			continue
		}
		raw, _ := flags.GetString(name)
		bp, err := flowtree.ParseBasisPoints(raw)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "--%s", name)
		}
		*dst = bp
	}

	target := baseTarget
	if raw, _ := flags.GetString("reward-target"); flags.Changed("reward-target") {
		if raw == "" {
			target = nil
		} else {
			addr, err := parseAddress(raw)
			if err != nil {
				return nil, nil, errors.Wrap(err, "--reward-target")
			}
			target = addr
		}
	}
	return &conf, target, nil
}

func (c *cli) newCreateNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-node",
		Short: "Create a distribution node",
		Long: `Create a distribution node managed by --manager, or by the first --as
condition. Strategies are given in order with --strategy as
single:<weight>:<address> or token_weighted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			manager, err := c.mainSigner()
			if raw, _ := flags.GetString("manager"); raw != "" {
				manager, err = parseAddress(raw)
			}
			if err != nil {
				return errors.Wrap(err, "manager")
			}
			conf, target, err := nodeConfigFlags(flags, nil, nil)
			if err != nil {
				return err
			}
			raws, _ := flags.GetStringArray("strategy")
			strategies := make([]*flow.StrategyRef, 0, len(raws))
			for _, raw := range raws {
				ref, err := parseStrategy(raw)
				if err != nil {
					return errors.Wrap(err, "--strategy")
				}
				strategies = append(strategies, ref)
			}
			return c.deliver(&flow.CreateNodeMsg{
				Manager:      manager,
				Config:       conf,
				Strategies:   strategies,
				RewardTarget: target,
			})
		},
	}
	addNodeConfigFlags(cmd.Flags())
	cmd.Flags().String("manager", "", "manager address, the first --as condition by default")
	cmd.Flags().StringArray("strategy", nil, "allocation strategy, can be repeated")
	return cmd
}

func (c *cli) newUpdateNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-node <node id>",
		Short: "Change the split configuration and the reward target of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeID, err := parseID(args[0])
			if err != nil {
				return err
			}
			node, err := c.loadNode(nodeID)
			if err != nil {
				return err
			}
			conf, target, err := nodeConfigFlags(cmd.Flags(), node.Config, node.RewardTarget)
			if err != nil {
				return err
			}
			return c.deliver(&flow.UpdateNodeConfigMsg{
				NodeID:       nodeID,
				Config:       conf,
				RewardTarget: target,
			})
		},
	}
	addNodeConfigFlags(cmd.Flags())
	return cmd
}

func (c *cli) newSetRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-rate <node id> <rate>",
		Short: "Set the incoming rate of a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeID, err := parseID(args[0])
			if err != nil {
				return err
			}
			rate, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return c.deliver(&flow.SetFlowRateMsg{NodeID: nodeID, Rate: rate})
		},
	}
}

// loadNode reads a node from the last committed state.
func (c *cli) loadNode(nodeID []byte) (*flow.Node, error) {
	a, err := c.openApp()
	if err != nil {
		return nil, err
	}
	defer a.Close()

	res, err := a.Query("/flow/nodes", flowtree.KeyQueryMod, nodeID)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "node %X", nodeID)
	}
	var n flow.Node
	if err := n.Unmarshal(res[0].Value); err != nil {
		return nil, errors.Wrap(err, "node")
	}
	return &n, nil
}
