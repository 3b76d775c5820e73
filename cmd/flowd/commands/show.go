package commands

import (
	"encoding/hex"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/x/flow"
	"github.com/spf13/cobra"
)

type nodeView struct {
	ID               string           `json:"id"`
	Address          flowtree.Address `json:"address"`
	Manager          flowtree.Address `json:"manager"`
	ParentID         string           `json:"parent_id,omitempty"`
	TotalRate        int64            `json:"total_rate"`
	Config           *flow.NodeConfig `json:"config"`
	Strategies       []string         `json:"strategies,omitempty"`
	RewardTarget     flowtree.Address `json:"reward_target,omitempty"`
	Rates            flow.Rates       `json:"rates"`
	RewardPending    bool             `json:"reward_pending,omitempty"`
	PoolsPending     bool             `json:"pools_pending,omitempty"`
	ActiveRecipients int64            `json:"active_recipients"`
	ActiveWeight     int64            `json:"active_weight"`
}

func newNodeView(n *flow.Node) nodeView {
	v := nodeView{
		ID:               hex.EncodeToString(n.ID),
		Address:          n.Address(),
		Manager:          n.Manager,
		ParentID:         hex.EncodeToString(n.ParentID),
		TotalRate:        n.TotalRate,
		Config:           n.Config,
		RewardTarget:     n.RewardTarget,
		Rates:            n.CurrentRates(),
		RewardPending:    n.RewardPending,
		PoolsPending:     n.PoolsPending,
		ActiveRecipients: n.ActiveRecipients,
		ActiveWeight:     n.ActiveWeight,
	}
	for _, s := range n.Strategies {
		v.Strategies = append(v.Strategies, s.Name)
	}
	return v
}

type recipientView struct {
	ID          string           `json:"id"`
	Address     flowtree.Address `json:"address"`
	Kind        string           `json:"kind"`
	ChildNodeID string           `json:"child_node_id,omitempty"`
	Removed     bool             `json:"removed,omitempty"`
	Metadata    string           `json:"metadata,omitempty"`
}

type accountView struct {
	Address   flowtree.Address `json:"address"`
	Balance   int64            `json:"balance"`
	Deposit   int64            `json:"deposit"`
	Available int64            `json:"available"`
}

func (c *cli) newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the last committed state",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "node <node id>",
			Short: "Print a node",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				nodeID, err := parseID(args[0])
				if err != nil {
					return err
				}
				n, err := c.loadNode(nodeID)
				if err != nil {
					return err
				}
				return c.print(newNodeView(n))
			},
		},
		&cobra.Command{
			Use:   "recipients <node id>",
			Short: "Print all recipients of a node, including removed ones",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				nodeID, err := parseID(args[0])
				if err != nil {
					return err
				}
				return c.showRecipients(nodeID)
			},
		},
		&cobra.Command{
			Use:   "pending <node id>",
			Short: "Print the addresses of children waiting for a rate push",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				nodeID, err := parseID(args[0])
				if err != nil {
					return err
				}
				return c.showPending(nodeID)
			},
		},
		&cobra.Command{
			Use:   "account <address>",
			Short: "Print the stream account of an address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, err := parseAddress(args[0])
				if err != nil {
					return err
				}
				return c.showAccount(addr)
			},
		},
	)
	return cmd
}

func (c *cli) showRecipients(nodeID []byte) error {
	a, err := c.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Query("/flow/recipients", flowtree.PrefixQueryMod, nodeID)
	if err != nil {
		return err
	}
	views := make([]recipientView, 0, len(res))
	for _, m := range res {
		var r flow.Recipient
		if err := r.Unmarshal(m.Value); err != nil {
			return errors.Wrap(err, "recipient")
		}
		v := recipientView{
			ID:       hex.EncodeToString(r.ID),
			Address:  r.Address,
			Kind:     r.Kind.String(),
			Removed:  r.Removed,
			Metadata: r.Metadata,
		}
		if len(r.ChildNodeID) != 0 {
			v.ChildNodeID = hex.EncodeToString(r.ChildNodeID)
		}
		views = append(views, v)
	}
	return c.print(views)
}

func (c *cli) showPending(nodeID []byte) error {
	a, err := c.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	db := a.store.CacheWrap()
	defer db.Discard()
	if _, err := a.flows.Node(db, nodeID); err != nil {
		return err
	}
	addrs, err := a.flows.PendingChildWork(db, nodeID)
	if err != nil {
		return err
	}
	if addrs == nil {
		addrs = []flowtree.Address{}
	}
	return c.print(addrs)
}

func (c *cli) showAccount(addr flowtree.Address) error {
	a, err := c.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	db := a.store.CacheWrap()
	defer db.Discard()
	acc, err := a.streams.Account(db, addr)
	if err != nil {
		return err
	}
	return c.print(accountView{
		Address:   addr,
		Balance:   acc.Balance,
		Deposit:   acc.Deposit,
		Available: acc.Available(),
	})
}
