// Command flowcore is the control CLI: flags for ports ("type:id"), cores,
// master core, process name, secondary mode, and duration, exiting 0 on
// clean shutdown and 1 on init failure. Uses a cobra+viper root command so
// the interface, queues, and pipeline attached to them are all runtime
// configuration rather than compiled in.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cilium/ebpf/rlimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/flowcore/flowcore/pkg/buffer"
	"github.com/flowcore/flowcore/pkg/metrics"
	"github.com/flowcore/flowcore/pkg/netctx"
	"github.com/flowcore/flowcore/pkg/nic"
	"github.com/flowcore/flowcore/pkg/nic/xdpdriver"
	"github.com/flowcore/flowcore/pkg/pipeline"
)

var (
	cfgFile      string
	ports        []string
	cores        []int
	masterCore   int
	processName  string
	secondary    bool
	duration     time.Duration
	interfaceNM  string
	programPath  string
	metricsAddr  string
)

var rootCmd = &cobra.Command{
	Use:   "flowcore",
	Short: "Run a flowcore dataplane process",
	Long: `flowcore starts a cooperative per-core scheduler pool over a set of NIC
queues, in either primary mode (owns the buffer pool and NIC queues) or
secondary mode (attaches to a primary process's pool by name).`,
	RunE: runFlowcore,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.config/flowcore/flowcore.yaml)")
	rootCmd.Flags().StringSliceVar(&ports, "port", nil, `NIC port in "type:id" form, e.g. "xdp:0" (repeatable)`)
	rootCmd.Flags().IntSliceVar(&cores, "cores", []int{0}, "cores to run dataplane schedulers on")
	rootCmd.Flags().IntVar(&masterCore, "master-core", 0, "core reserved for the control plane")
	rootCmd.Flags().StringVar(&processName, "name", "flowcore", "process/buffer-pool name, used by secondary attach")
	rootCmd.Flags().BoolVar(&secondary, "secondary", false, "attach to an existing primary process instead of initializing one")
	rootCmd.Flags().DurationVar(&duration, "duration", 0, "run for this long then shut down cleanly (0 = run until signaled)")
	rootCmd.Flags().StringVar(&interfaceNM, "interface", "eth0", "network interface an xdp port binds to")
	rootCmd.Flags().StringVar(&programPath, "xdp-program", "", "path to a compiled XDP object file (required for xdp ports in primary mode)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on (empty disables it)")

	viper.BindPFlag("ports", rootCmd.Flags().Lookup("port"))
	viper.BindPFlag("cores", rootCmd.Flags().Lookup("cores"))
	viper.BindPFlag("master_core", rootCmd.Flags().Lookup("master-core"))
	viper.BindPFlag("name", rootCmd.Flags().Lookup("name"))
	viper.BindPFlag("secondary", rootCmd.Flags().Lookup("secondary"))
	viper.BindPFlag("duration", rootCmd.Flags().Lookup("duration"))
	viper.BindPFlag("interface", rootCmd.Flags().Lookup("interface"))
	viper.BindPFlag("xdp_program", rootCmd.Flags().Lookup("xdp-program"))
	viper.BindPFlag("metrics_addr", rootCmd.Flags().Lookup("metrics-addr"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME/.config/flowcore")
		viper.SetConfigName("flowcore")
	}
	viper.SetEnvPrefix("FLOWCORE")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig() // absence of a config file is not an error; flags/env still apply
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

type portSpec struct {
	kind string
	id   int
}

func parsePortSpec(raw string) (portSpec, error) {
	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		return portSpec{}, fmt.Errorf("port %q: want \"type:id\"", raw)
	}
	id, err := strconv.Atoi(raw[idx+1:])
	if err != nil {
		return portSpec{}, fmt.Errorf("port %q: bad id: %w", raw, err)
	}
	return portSpec{kind: raw[:idx], id: id}, nil
}

// echoFactory builds the default task for a port when no application
// pipeline is registered: receive a batch and send it straight back out
// the same queue. Useful to smoke-test a driver and scheduler wiring
// without an application attached.
func echoFactory(q nic.Queue) pipeline.Task {
	recv := pipeline.NewReceive(q, 64)
	return pipeline.NewSend(recv, q)
}

func runFlowcore(cmd *cobra.Command, args []string) error {
	// Read every setting back through viper so a config file or FLOWCORE_*
	// environment variable supplies what the command line leaves unset.
	ports = viper.GetStringSlice("ports")
	cores = viper.GetIntSlice("cores")
	masterCore = viper.GetInt("master_core")
	processName = viper.GetString("name")
	secondary = viper.GetBool("secondary")
	duration = viper.GetDuration("duration")
	interfaceNM = viper.GetString("interface")
	programPath = viper.GetString("xdp_program")
	metricsAddr = viper.GetString("metrics_addr")

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("flowcore: logger: %w", err)
	}
	defer log.Sync()

	if err := rlimit.RemoveMemlock(); err != nil {
		log.Warn("remove memlock failed, eBPF map creation may fail", zap.Error(err))
	}

	var reg prometheus.Registerer
	if metricsAddr != "" {
		registry := prometheus.NewRegistry()
		reg = registry
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer server.Close()
	}
	m := metrics.New(reg)

	assignments := make([]netctx.Assignment, 0, len(ports))
	specs := make([]portSpec, 0, len(ports))
	for _, raw := range ports {
		spec, err := parsePortSpec(raw)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}
	for i, spec := range specs {
		core := cores[i%len(cores)]
		assignments = append(assignments, netctx.Assignment{Port: spec.kind, Queue: spec.id, Core: core})
	}

	driver := xdpdriver.New(xdpdriver.DefaultConfig(programPath))
	ctx := netctx.New(driver, log)
	ctx.SetMetrics(m)

	if secondary {
		if err := ctx.AttachSecondary(processName, masterCore); err != nil {
			log.Error("secondary attach failed", zap.Error(err))
			return errExit{1}
		}
	} else {
		// The AF_XDP driver attaches per network interface rather than by a
		// pool name (it has no secondary-attach support to share a name
		// with), so the interface flag is what InitializePrimary needs here;
		// processName stays reserved for drivers that do support attach.
		if err := ctx.InitializePrimary(interfaceNM, masterCore, 8192, 64, buffer.MetadataSlots); err != nil {
			log.Error("primary init failed", zap.Error(err))
			return errExit{1}
		}
		for _, spec := range specs {
			if err := driver.OpenQueue(uint32(spec.id)); err != nil {
				log.Error("open queue failed", zap.String("port", spec.kind), zap.Int("queue", spec.id), zap.Error(err))
				return errExit{1}
			}
		}
	}

	if err := ctx.Start(assignments, echoFactory); err != nil {
		log.Error("start failed", zap.Error(err))
		return errExit{1}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	if duration > 0 {
		select {
		case <-time.After(duration):
		case <-sig:
		}
	} else {
		<-sig
	}

	ctx.Shutdown()
	if err := ctx.Close(); err != nil {
		log.Warn("driver close failed", zap.Error(err))
	}
	log.Info("flowcore stopped cleanly")
	return nil
}

// errExit carries a process exit code through cobra's RunE without cobra
// printing a redundant "Error:" line for an already-logged failure.
type errExit struct{ code int }

func (e errExit) Error() string { return fmt.Sprintf("exit %d", e.code) }

func main() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		if ee, ok := err.(errExit); ok {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}
