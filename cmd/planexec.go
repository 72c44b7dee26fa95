package cmd

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/hashicorp/hcl"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leftmike/planexec/history"
	"github.com/leftmike/planexec/session"
	"github.com/leftmike/planexec/transport/pgconn"
)

var (
	planexecCmd = &cobra.Command{
		Use:               "planexec",
		Short:             "Execute query plans",
		Long:              "Planexec executes plans of SQL statements against a database session.",
		PersistentPreRunE: planexecPreRun,
		PersistentPostRun: planexecPostRun,
		SilenceUsage:      true,
	}

	logFile   = "planexec.log"
	logLevel  = "info"
	logStderr = false
	logWriter io.WriteCloser

	configFile = "planexec.hcl"
	noConfig   = false

	historyStore = ""
	historyDir   = "testdata"

	optionArgs = []string{}
	options    = map[string]string{}

	cfgVars   = map[string]*pflag.Flag{}
	cfg       = map[string]interface{}{}
	usedFlags = map[string]struct{}{}
)

func init() {
	log.SetFormatter(&log.TextFormatter{
		DisableLevelTruncation: true,
	})

	fs := planexecCmd.PersistentFlags()

	fs.StringVar(&logFile, "log-file", logFile, "`file` to use for logging")
	cfgVars["log-file"] = fs.Lookup("log-file")

	fs.StringVar(&logLevel, "log-level", logLevel,
		"log level: trace, debug, info, warn, error, fatal, or panic")
	cfgVars["log-level"] = fs.Lookup("log-level")

	fs.BoolVarP(&logStderr, "log-stderr", "s", logStderr, "log to standard error")

	fs.StringVar(&configFile, "config-file", configFile, "`file` to load config from")
	fs.BoolVar(&noConfig, "no-config", noConfig, "don't load config file")

	fs.StringVar(&historyStore, "history", historyStore,
		"record executed statements in a store: memory, bbolt, badger, or pebble")
	cfgVars["history"] = fs.Lookup("history")

	fs.StringVar(&historyDir, "history-dir", historyDir, "`directory` containing the history")
	cfgVars["history-dir"] = fs.Lookup("history-dir")

	fs.StringSliceVarP(&optionArgs, "option", "o", optionArgs,
		"connection `option` as key=value; multiple allowed")
	cfgVars["options"] = nil
}

func Execute() error {
	return planexecCmd.Execute()
}

func planexecPreRun(cmd *cobra.Command, args []string) error {
	cmd.Flags().Visit(
		func(flg *pflag.Flag) {
			usedFlags[flg.Name] = struct{}{}
		})

	if configFile != "" && !noConfig {
		err := loadConfig()
		if err != nil && !(os.IsNotExist(err) && !configFileUsed()) {
			return fmt.Errorf("planexec: %s", err)
		}
	}

	for _, opt := range optionArgs {
		idx := strings.IndexByte(opt, '=')
		if idx <= 0 {
			return fmt.Errorf("planexec: option: expected key=value; got %s", opt)
		}
		options[strings.ToLower(opt[:idx])] = opt[idx+1:]
	}

	if !logStderr && logFile != "" {
		var err error
		logWriter, err = os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			logWriter = nil
			return fmt.Errorf("planexec: %s", err)
		}
		log.SetOutput(logWriter)
	}

	ll, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("planexec: %s", err)
	}
	log.SetLevel(ll)

	log.WithField("pid", os.Getpid()).Info("planexec starting")
	return nil
}

func planexecPostRun(cmd *cobra.Command, args []string) {
	log.WithField("pid", os.Getpid()).Info("planexec done")

	if logWriter != nil {
		logWriter.Close()
	}
}

func configFileUsed() bool {
	_, ok := usedFlags["config-file"]
	return ok
}

func loadConfig() error {
	b, err := ioutil.ReadFile(configFile)
	if err != nil {
		return err
	}

	err = hcl.Decode(&cfg, string(b))
	if err != nil {
		return err
	}

	for name, val := range cfg {
		flg, ok := cfgVars[name]
		if !ok {
			return fmt.Errorf("%s is not a config variable", name)
		}
		if flg == nil {
			err = loadOptions(val)
			if err != nil {
				return fmt.Errorf("%s: %s", name, err)
			}
			continue
		}
		if _, ok := usedFlags[flg.Name]; ok {
			continue
		}
		err := flg.Value.Set(fmt.Sprintf("%v", val))
		if err != nil {
			return fmt.Errorf("%s: %s", name, err)
		}
	}

	return nil
}

// loadOptions loads an options block; options given on the command line take precedence.
func loadOptions(val interface{}) error {
	var blocks []map[string]interface{}
	switch val := val.(type) {
	case map[string]interface{}:
		blocks = append(blocks, val)
	case []map[string]interface{}:
		blocks = val
	default:
		return fmt.Errorf("expected a block; got %v", val)
	}

	for _, blk := range blocks {
		for key, v := range blk {
			switch v.(type) {
			case string, bool, int, int64, float64:
			default:
				return fmt.Errorf("%s: expected a string, number, or boolean; got %v", key, v)
			}
			options[strings.ToLower(key)] = fmt.Sprintf("%v", v)
		}
	}
	return nil
}

func openHistory() (*history.QueryHistory, error) {
	if historyStore == "" {
		return nil, nil
	}

	kv, err := history.OpenKV(historyStore, historyDir, log.StandardLogger())
	if err != nil {
		return nil, err
	}
	qh, err := history.NewQueryHistory(kv)
	if err != nil {
		kv.Close()
		return nil, err
	}
	return qh, nil
}

// openSession connects a session using the configured options; if a history store is
// configured, it records the statements executed by the session.
func openSession(ctx context.Context) (*session.Session, func(), error) {
	qh, err := openHistory()
	if err != nil {
		return nil, nil, err
	}

	ses, err := session.Open(ctx, pgconn.Connector, options)
	if err != nil {
		if qh != nil {
			qh.Close()
		}
		return nil, nil, err
	}
	if qh != nil {
		ses.AddQueryListener(qh)
	}

	return ses, func() {
		err := ses.Close()
		if err != nil {
			log.WithField("error", err.Error()).Error("closing session")
		}
		if qh != nil {
			err = qh.Close()
			if err != nil {
				log.WithField("error", err.Error()).Error("closing history")
			}
		}
	}, nil
}
