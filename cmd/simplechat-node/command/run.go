// Package command implements the simplechat-node CLI.
package command

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rajnipawar/SimpleChat-DSDV-Routing/config"
	"github.com/rajnipawar/SimpleChat-DSDV-Routing/node"
	netpkg "github.com/rajnipawar/SimpleChat-DSDV-Routing/net"
	"github.com/rajnipawar/SimpleChat-DSDV-Routing/service"
	vers "github.com/rajnipawar/SimpleChat-DSDV-Routing/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CliConfig is the flat set of CLI-level options layered on top of
// config.Config: --peers and --connect are both raw comma-separated port
// lists at the flag level, merged into config.Config.SeedPeerPorts once
// parsed.
type CliConfig struct {
	Node       config.Config `mapstructure:",squash"`
	PeersCSV   string        `mapstructure:"peers"`
	ConnectCSV string        `mapstructure:"connect"`
}

func newDefaultCliConfig() *CliConfig {
	return &CliConfig{
		Node: *config.NewDefaultConfig(),
	}
}

var (
	cliConfig *CliConfig
	version   *bool
)

func init() {
	cliConfig = newDefaultCliConfig()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("bind-host", "b", cliConfig.Node.BindHost, "Bind host for the UDP socket")
	rootCmd.PersistentFlags().IntP("port", "p", cliConfig.Node.Port, "Bind port; also this node's identity discriminator")
	rootCmd.PersistentFlags().StringP("peers", "", "", "Comma-separated list of local peer ports to probe at startup")
	rootCmd.PersistentFlags().StringP("connect", "c", "", "Comma-separated list of local peer ports to probe at startup (alias of --peers)")
	rootCmd.PersistentFlags().Bool("noforward", cliConfig.Node.NoForward, "Rendezvous mode: relay route rumors but never deliver or forward chat traffic")
	rootCmd.PersistentFlags().StringP("service-listen", "s", cliConfig.Node.ServiceAddr, "Debug HTTP service listen address; empty disables it")
	rootCmd.PersistentFlags().String("log", cliConfig.Node.LogLevel, "Log level (debug, info, warn, error, fatal, panic)")

	version = rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version and exit")
}

func initConfig() {
	viper.BindPFlags(rootCmd.PersistentFlags())

	if err := viper.Unmarshal(cliConfig); err != nil {
		fmt.Println("unmarshalling config:", err, ". Taking cli or default.")
	}
}

// parsePortCSV parses a comma-separated list of ports, skipping any entry
// that doesn't parse as a non-negative integer rather than failing the
// whole list.
func parsePortCSV(csv string) []int {
	var ports []int
	for _, field := range strings.Split(csv, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		port, err := strconv.Atoi(field)
		if err != nil || port < 0 {
			continue
		}
		ports = append(ports, port)
	}
	return ports
}

var rootCmd = &cobra.Command{
	Use:   "simplechat-node",
	Short: "SimpleChat DSDV routing node",
	Long:  "SimpleChat DSDV routing node: epidemic anti-entropy chat over a gossiped distance-vector overlay",
	Run: func(cmd *cobra.Command, args []string) {
		if *version {
			fmt.Println(vers.Version)
			return
		}

		conf := &cliConfig.Node
		if conf.Port <= 0 {
			fmt.Fprintln(os.Stderr, "invalid --port, falling back to", config.DefaultPort)
			conf.Port = config.DefaultPort
		}

		seedPorts := append(parsePortCSV(cliConfig.PeersCSV), parsePortCSV(cliConfig.ConnectCSV)...)
		conf.SeedPeerPorts = seedPorts

		logger := conf.Logger()
		logger.WithFields(logrus.Fields{
			"bind_host": conf.BindHost,
			"port":      conf.Port,
			"peers":     seedPorts,
			"noforward": conf.NoForward,
			"service":   conf.ServiceAddr,
		}).Debug("starting simplechat node")

		trans, err := netpkg.NewUDPTransport(conf.BindAddr(), logger.WithField("component", "transport"))
		if err != nil {
			logger.WithError(err).Error("cannot bind UDP transport")
			os.Exit(1)
		}

		engine := node.NewEngine(conf, trans, nil)

		if conf.ServiceAddr != "" {
			svc := service.NewService(conf.ServiceAddr, engine, logger.WithField("component", "service"))
			go svc.Serve()
		}

		engine.DiscoverPeers(seedPorts)

		if err := engine.ListenAndServe(); err != nil {
			logger.WithError(err).Error("engine stopped")
			os.Exit(1)
		}
	},
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
