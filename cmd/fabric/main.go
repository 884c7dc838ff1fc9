// Command fabric is the single-binary entry point for running a fabric
// node: a cobra root command with persistent logging flags, subcommands
// that construct and run the core engine, and a background metrics HTTP
// server.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/fabric/pkg/config"
	"github.com/cuemby/fabric/pkg/fabric"
	"github.com/cuemby/fabric/pkg/log"
	"github.com/cuemby/fabric/pkg/metrics"
	"github.com/cuemby/fabric/pkg/raft"
	"github.com/cuemby/fabric/pkg/rpcserver"
	"github.com/cuemby/fabric/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fabric",
	Short: "fabric - consensus, bridging, streaming, and ordering for a blockchain-adjacent node",
	Long: `fabric hosts a RAFT consensus engine, a Byzantine-quorum bridge oracle
coordinator, a streaming fan-out layer, and an ML-driven transaction
ordering loop, delivered as a single binary.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"fabric version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(bridgeCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func loadConfig(cmd *cobra.Command) config.Config {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		return config.Default()
	}
	cfg, err := config.LoadYAML(cfgPath)
	if err != nil {
		log.WithComponent("cli").Warn().Err(err).Str("path", cfgPath).Msg("failed to load config file, using defaults")
		return config.Default()
	}
	return cfg
}

func serveMetrics(addr string) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			log.WithComponent("cli").Error().Err(err).Msg("metrics server error")
		}
	}()
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}

// node commands

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage a single fabric node",
}

var nodeStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a standalone fabric node",
	Long: `Start a single-node fabric, self-electing as Raft leader, hosting the
bridge oracle coordinator, the streaming domains, and the ML ordering
learner.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		hmacKey, _ := cmd.Flags().GetString("hmac-key")
		modelName, _ := cmd.Flags().GetString("model-name")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		rpcAddr, _ := cmd.Flags().GetString("rpc-addr")
		cfg := loadConfig(cmd)

		fmt.Printf("Starting fabric node %s\n", nodeID)
		fmt.Printf("  Data directory: %s\n", dataDir)
		fmt.Printf("  Model name: %s\n", modelName)

		transport := raft.NewInMemoryTransport()
		n, err := fabric.NewNode(fabric.NodeConfig{
			NodeID:    nodeID,
			DataDir:   dataDir,
			HMACKey:   []byte(hmacKey),
			ModelName: modelName,
			Fabric:    cfg,
		}, transport)
		if err != nil {
			return fmt.Errorf("failed to construct node: %w", err)
		}
		if err := n.Bootstrap(); err != nil {
			return fmt.Errorf("failed to bootstrap node: %w", err)
		}

		serveMetrics(metricsAddr)

		rpc, err := rpcserver.New(rpcAddr, nil)
		if err != nil {
			return fmt.Errorf("failed to start rpc listener: %w", err)
		}
		go func() {
			if err := rpc.Serve(); err != nil {
				log.WithComponent("cli").Error().Err(err).Msg("rpc server error")
			}
		}()
		go reportLeadershipHealth(n, rpc)

		fmt.Printf("✓ Node constructed, self-electing\n")
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)
		fmt.Printf("✓ gRPC health service: %s\n", rpc.Addr())
		fmt.Println("Node is running. Press Ctrl+C to stop.")

		waitForSignal()
		fmt.Println("\nShutting down...")
		rpc.Stop()
		if err := n.Shutdown(); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

// reportLeadershipHealth flips the gRPC health status to SERVING once
// this node holds Raft leadership, so /health reflects cluster
// readiness rather than bare process liveness.
func reportLeadershipHealth(n *fabric.Node, rpc *rpcserver.Server) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		rpc.SetServing("", n.IsLeader())
	}
}

func init() {
	nodeStartCmd.Flags().String("node-id", "node-1", "Stable node identifier")
	nodeStartCmd.Flags().String("data-dir", "./data", "Directory for the node's BoltDB store")
	nodeStartCmd.Flags().String("hmac-key", "change-me", "HMAC key backing the bridge lock-proof verifier")
	nodeStartCmd.Flags().String("model-name", "ordering-default", "ML ordering model name this node trains")
	nodeStartCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve Prometheus metrics on")
	nodeStartCmd.Flags().String("rpc-addr", "127.0.0.1:9091", "Address to serve the gRPC health service on")
	nodeStartCmd.Flags().String("config", "", "Optional YAML config file overriding defaults")
	nodeCmd.AddCommand(nodeStartCmd)
}

// cluster commands

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Run a multi-node fabric cluster in one process",
}

var clusterSimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run N fabric nodes sharing an in-memory transport",
	Long: `Constructs N fabric nodes wired to a shared in-memory Raft transport
within this process and runs until one is elected leader, then keeps
the cluster alive. Useful for local demonstration since the wire
transport for a real multi-process cluster is an external collaborator
this binary does not implement.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("nodes")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		hmacKey, _ := cmd.Flags().GetString("hmac-key")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		cfg := loadConfig(cmd)
		if count < 1 {
			return fmt.Errorf("nodes must be >= 1")
		}

		ids := make([]string, count)
		for i := range ids {
			ids[i] = fmt.Sprintf("node-%d", i+1)
		}

		transport := raft.NewInMemoryTransport()
		nodes := make([]*fabric.Node, 0, count)
		for i, id := range ids {
			peers := make([]string, 0, count-1)
			for j, other := range ids {
				if j != i {
					peers = append(peers, other)
				}
			}
			n, err := fabric.NewNode(fabric.NodeConfig{
				NodeID:    id,
				Peers:     peers,
				DataDir:   fmt.Sprintf("%s/%s", dataDir, id),
				HMACKey:   []byte(hmacKey),
				ModelName: "ordering-default",
				Fabric:    cfg,
			}, transport)
			if err != nil {
				return fmt.Errorf("failed to construct %s: %w", id, err)
			}
			if err := n.Bootstrap(); err != nil {
				return fmt.Errorf("failed to bootstrap %s: %w", id, err)
			}
			nodes = append(nodes, n)
		}

		serveMetrics(metricsAddr)
		fmt.Printf("✓ %d-node cluster constructed\n", count)
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)

		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for range ticker.C {
				for _, n := range nodes {
					if n.IsLeader() {
						stats := n.GetRaftStats()
						fmt.Printf("leader=%s term=%d commitIndex=%d\n", n.NodeID(), stats.CurrentTerm, stats.CommitIndex)
					}
				}
			}
		}()

		fmt.Println("Cluster is running. Press Ctrl+C to stop.")
		waitForSignal()
		fmt.Println("\nShutting down...")
		for _, n := range nodes {
			if err := n.Shutdown(); err != nil {
				log.WithComponent("cli").Error().Err(err).Str("node_id", n.NodeID()).Msg("shutdown error")
			}
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	clusterSimulateCmd.Flags().Int("nodes", 3, "Number of nodes to construct")
	clusterSimulateCmd.Flags().String("data-dir", "./data/cluster", "Base directory for per-node BoltDB stores")
	clusterSimulateCmd.Flags().String("hmac-key", "change-me", "HMAC key backing the bridge lock-proof verifier")
	clusterSimulateCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve Prometheus metrics on")
	clusterSimulateCmd.Flags().String("config", "", "Optional YAML config file overriding defaults")
	clusterCmd.AddCommand(clusterSimulateCmd)
}

// bridge commands

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Inspect bridge transfer state in a node's data directory",
}

var bridgeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a bridge transfer's stored status, read directly without the lazy refund check",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		bridgeID, _ := cmd.Flags().GetString("bridge-id")
		if bridgeID == "" {
			return fmt.Errorf("--bridge-id is required")
		}

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()

		transfer, err := store.GetBridgeTransfer(bridgeID)
		if err != nil {
			return fmt.Errorf("bridge transfer not found: %w", err)
		}

		fmt.Printf("bridgeId:   %s\n", transfer.BridgeID)
		fmt.Printf("status:     %s\n", transfer.Status)
		fmt.Printf("sourceChain: %s\n", transfer.SourceChain)
		fmt.Printf("destChain:   %s\n", transfer.DestChain)
		fmt.Printf("amount:      %s\n", transfer.Amount)
		fmt.Printf("finalized:   %t\n", transfer.Finalized)
		if transfer.DestTxHash != "" {
			fmt.Printf("destTxHash:  %s\n", transfer.DestTxHash)
		}
		if transfer.Error != "" {
			fmt.Printf("error:       %s\n", transfer.Error)
		}
		return nil
	},
}

func init() {
	bridgeStatusCmd.Flags().String("data-dir", "./data", "Node data directory to read the BoltDB store from")
	bridgeStatusCmd.Flags().String("bridge-id", "", "Bridge transfer ID to query")
	bridgeCmd.AddCommand(bridgeStatusCmd)
}
