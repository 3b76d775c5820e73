package commands

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/crypto"
	"github.com/iov-one/flowtree/errors"
	"github.com/spf13/cobra"
)

func (c *cli) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <genesis.json>",
		Short: "Initialize the state from a genesis file, - reads it from stdin",
		Long: `Initialize the state from a genesis file. The file is a JSON object,
for example:

  {
    "conf": {
      "stream": {"owner": "<address>", "buffer_period": 3600},
      "flow": {"drain_cap": 50, "max_recipients": 1000}
    },
    "stream": {"accounts": [{"address": "<address>", "amount": 1000000}]}
  }`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if args[0] == "-" {
				raw, err = ioutil.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = ioutil.ReadFile(args[0])
			}
			if err != nil {
				return errors.Wrapf(errors.ErrInput, "read genesis: %s", err)
			}
			var opts flowtree.Options
			if err := json.Unmarshal(raw, &opts); err != nil {
				return errors.Wrapf(errors.ErrInput, "genesis: %s", err)
			}

			a, err := c.openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			id, err := a.InitState(opts)
			if err != nil {
				return err
			}
			return c.print(deliverOutput{Version: id.Version})
		},
	}
}

type addressOutput struct {
	Condition string           `json:"condition"`
	Address   flowtree.Address `json:"address"`
	Bech32    string           `json:"bech32"`
}

func (c *cli) newAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address <condition>",
		Short: "Print the address of a condition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cond, err := flowtree.ParseCondition(args[0])
			if err != nil {
				return err
			}
			out, err := describeCondition(cond)
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}
}

func describeCondition(cond flowtree.Condition) (addressOutput, error) {
	addr := cond.Address()
	b32, err := addr.Bech32()
	if err != nil {
		return addressOutput{}, errors.Wrap(errors.ErrInput, err.Error())
	}
	return addressOutput{Condition: cond.String(), Address: addr, Bech32: b32}, nil
}

func (c *cli) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(c.out, flowtree.Version())
		},
	}
}

type keyOutput struct {
	PrivateKey string `json:"private_key"`
	addressOutput
}

func (c *cli) newKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 key and print its condition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				priv crypto.PrivateKey
				err  error
			)
			if raw, _ := cmd.Flags().GetString("seed"); raw != "" {
				seed, decErr := hex.DecodeString(raw)
				if decErr != nil {
					return errors.Wrapf(errors.ErrInput, "--seed: %s", decErr)
				}
				priv, err = crypto.PrivKeyEd25519FromSeed(seed)
			} else {
				priv, err = crypto.GenPrivKeyEd25519()
			}
			if err != nil {
				return err
			}
			out, err := describeCondition(priv.PublicKey().Condition())
			if err != nil {
				return err
			}
			return c.print(keyOutput{PrivateKey: hex.EncodeToString(priv), addressOutput: out})
		},
	}
	cmd.Flags().String("seed", "", "hex encoded 32 byte seed, random when empty")
	return cmd
}
