package cli

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/mcp"
)

// --auto-port tries these loopback ports in order.
const (
	autoPortFirst = 7331
	autoPortLast  = 7350
)

var (
	mcpPort     int
	mcpAutoPort bool
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol integration",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the project to AI assistants over MCP",
	Long: `Serves the content_hash, job_status, detect_stale and list_knowledge
tools together with project status and knowledge resources.

Without flags the server speaks MCP over stdin and stdout, which is what
desktop assistants expect. --port or --auto-port serve streamable HTTP
instead, for the MCP Inspector or remote clients.

Examples:
  lorekeeper mcp serve --project my-novel
  lorekeeper mcp serve --port 8080
  lorekeeper mcp serve --auto-port`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "serve HTTP on this port (0 means stdio)")
	mcpServeCmd.Flags().BoolVar(&mcpAutoPort, "auto-port", false,
		fmt.Sprintf("serve HTTP on the first free port in %d-%d", autoPortFirst, autoPortLast))
	mcpServeCmd.MarkFlagsMutuallyExclusive("port", "auto-port")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	server, err := newMCPServer()
	if err != nil {
		return err
	}

	var ln net.Listener
	switch {
	case mcpAutoPort:
		ln, err = listenFirstFree("127.0.0.1", autoPortFirst, autoPortLast)
	case mcpPort > 0:
		ln, err = net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(mcpPort)))
	default:
		return server.Run(cmd.Context())
	}
	if err != nil {
		return err
	}

	port := ln.Addr().(*net.TCPAddr).Port
	cmd.Printf("MCP server listening on http://localhost:%d%s\n", port, mcp.Endpoint)
	return server.Serve(cmd.Context(), ln)
}

func newMCPServer() (*mcp.Server, error) {
	if hashService == nil || jobService == nil {
		return nil, errors.New("services not configured")
	}
	return mcp.NewServer(&mcp.Ports{
		Hash:           hashService,
		Jobs:           jobService,
		Staleness:      stalenessDetector,
		Knowledge:      knowledgeService,
		DefaultProject: flagProject,
	})
}

// listenFirstFree binds the lowest free port in [first, last] and keeps it,
// so nothing can take the port between the probe and the serve.
func listenFirstFree(host string, first, last int) (net.Listener, error) {
	for port := first; port <= last; port++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			return ln, nil
		}
	}
	return nil, fmt.Errorf("no free port in %d-%d", first, last)
}
