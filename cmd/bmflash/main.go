package main

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/STM32World/blackmagic/remote"
	"github.com/STM32World/blackmagic/sam"
	"github.com/STM32World/blackmagic/target"
)

const appVersion = "0.1.0"

// probeProfile is the YAML configuration file format.
type probeProfile struct {
	Port   string `yaml:"port"`
	Baud   int    `yaml:"baud"`
	Verify bool   `yaml:"verify"`
}

var (
	flagPort    string
	flagBaud    int
	flagProfile string
	flagVerbose bool

	profile = probeProfile{Baud: 115200, Verify: true}
)

var rootCmd = &cobra.Command{
	Use:          "bmflash",
	Short:        "Flash tool for Atmel SAM3/SAM4/SAMx7 targets behind a debug probe",
	Version:      appVersion,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if flagVerbose {
			log.SetLevel(log.DebugLevel)
		}
		target.SetLogger(log.StandardLogger())

		if flagProfile != "" {
			data, err := os.ReadFile(flagProfile)
			if err != nil {
				return errors.Wrap(err, "failed to open profile file")
			}
			if err := yaml.Unmarshal(data, &profile); err != nil {
				return errors.Wrap(err, "failed to parse profile file")
			}
		}
		if flagPort != "" {
			profile.Port = flagPort
		}
		if rootCmd.PersistentFlags().Changed("baud") {
			profile.Baud = flagBaud
		}
		return nil
	}
}

// connect opens the probe and identifies the attached device. The two
// device lines have independent probes; each is tried in turn.
func connect() (*remote.Probe, *target.Target, error) {
	if profile.Port == "" {
		return nil, nil, errors.New("must specify port")
	}
	probe := remote.New(profile.Port, profile.Baud)
	if err := probe.Open(); err != nil {
		return nil, nil, err
	}

	t := target.New(probe)
	if !sam.ProbeX7X(t) && !sam.Probe3(t) {
		probe.Close()
		return nil, nil, errors.New("device not recognized")
	}
	log.Infof("probed %s", t.Driver())
	return probe, t, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPort, "port", "", "serial port of the debug probe")
	rootCmd.PersistentFlags().IntVar(&flagBaud, "baud", 115200, "baud rate")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "probe profile yaml file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(probeCmd, flashCmd, eraseCmd, writeCmd, readCmd, monitorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
