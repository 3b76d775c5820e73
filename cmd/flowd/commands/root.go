package commands

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tendermint/tendermint/libs/log"
)

// cli holds the state shared by the commands of a single root command.
type cli struct {
	v      *viper.Viper
	config *CLIConfig
	out    io.Writer
	logger log.Logger
}

// NewRootCmd returns the flowd command with all sub commands attached.
// Command results are written to out as JSON.
func NewRootCmd(out io.Writer) *cobra.Command {
	c := &cli{
		v:      viper.New(),
		config: NewDefaultCLIConfig(),
		out:    out,
		logger: log.NewNopLogger(),
	}

	root := &cobra.Command{
		Use:               "flowd",
		Short:             "Hierarchical streaming distribution tree",
		TraverseChildren:  true,
		PersistentPreRunE: c.loadConfig,
	}
	flags := root.PersistentFlags()
	flags.String("home", c.config.Home, "directory to store the state and flowd.toml under")
	flags.String("log-level", c.config.LogLevel, "debug, info or error")
	flags.StringSlice("as", nil, "conditions authorizing the message, for example sigs/ed25519/<hex>")
	flags.String("time", "", "block time in RFC3339, the current time when empty")

	root.AddCommand(
		c.newVersionCmd(),
		c.newInitCmd(),
		c.newAddressCmd(),
		c.newKeygenCmd(),
		c.newCreateNodeCmd(),
		c.newUpdateNodeCmd(),
		c.newSetRateCmd(),
		c.newAddRecipientCmd(),
		c.newAddChildCmd(),
		c.newRemoveRecipientCmd(),
		c.newAllocateCmd(),
		c.newDrainCmd(),
		c.newIssueCmd(),
		c.newTickCmd(),
		c.newShowCmd(),
		c.newMetricsCmd(),
	)
	return root
}

func (c *cli) loadConfig(cmd *cobra.Command, args []string) error {
	if err := c.bindFlagsLoadViper(cmd); err != nil {
		return err
	}
	logger, err := newLogger(c.config.LogLevel)
	if err != nil {
		return err
	}
	c.logger = logger
	c.logger.Debug("config", "home", c.config.Home, "as", c.config.As)
	return nil
}

// bindFlagsLoadViper binds the flags to viper, then reads flowd.toml from the
// home directory, if it exists. Flags explicitly set override the file.
func (c *cli) bindFlagsLoadViper(cmd *cobra.Command) error {
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	// The home directory can only come from the flags.
	if err := c.v.Unmarshal(c.config); err != nil {
		return err
	}

	c.v.SetConfigName("flowd")
	c.v.AddConfigPath(c.config.Home)
	if err := c.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrapf(errors.ErrInput, "config file: %s", err)
		}
	}
	return c.v.Unmarshal(c.config)
}

func newLogger(level string) (log.Logger, error) {
	logger := log.NewTMLogger(log.NewSyncWriter(os.Stderr)).With("module", "flowd")
	opt, err := log.AllowLevel(level)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	return log.NewFilter(logger, opt), nil
}

// signers returns the conditions given with --as.
func (c *cli) signers() ([]flowtree.Condition, error) {
	conds := make([]flowtree.Condition, 0, len(c.config.As))
	for _, raw := range c.config.As {
		cond, err := flowtree.ParseCondition(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "--as %q", raw)
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

// mainSigner returns the address of the first --as condition.
func (c *cli) mainSigner() (flowtree.Address, error) {
	conds, err := c.signers()
	if err != nil {
		return nil, err
	}
	if len(conds) == 0 {
		return nil, errors.Wrap(errors.ErrUnauthorized, "no --as condition")
	}
	return conds[0].Address(), nil
}

func (c *cli) blockTime() (time.Time, error) {
	if c.config.Time == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, c.config.Time)
	if err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrInput, "--time: %s", err)
	}
	return t, nil
}

func (c *cli) print(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
