package commands

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/meshworks/tattle/src/client"
	tnet "github.com/meshworks/tattle/src/net"
	"github.com/meshworks/tattle/src/wire"
	"github.com/spf13/cobra"
)

var (
	agentID   string
	relayAddr string
)

// NewAgentCmd returns the command that runs an interactive agent shell
// connected to a relay.
func NewAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run an interactive agent connected to a relay",
		RunE:  runAgent,
	}

	cmd.Flags().StringVar(&agentID, "id", "", "Agent id to register under")
	cmd.Flags().StringVar(&relayAddr, "connect", _config.BindAddr, "IP:Port of the relay")
	cmd.MarkFlagRequired("id")

	return cmd
}

func runAgent(cmd *cobra.Command, args []string) error {
	c, err := client.Dial(tnet.TCPDialer{}, relayAddr, agentID, _config.Timeout, _config.Logger())
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("[%s] connected to %s\n", agentID, relayAddr)
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  /list              - Show connected agents")
	fmt.Println("  /msg <id> <m>      - Send a direct message")
	fmt.Println("  /mention <ids> <m> - Mention agents (comma separated ids)")
	fmt.Println("  /broadcast <m>     - Broadcast to all")
	fmt.Println("  /graph             - Show the mention graph")
	fmt.Println("  /scores            - Show centrality scores")
	fmt.Println("  /quit              - Exit")
	fmt.Println()

	go func() {
		for resp := range c.Events() {
			switch resp.Type {
			case wire.Message:
				fmt.Printf("[%s] %s from %s: %s\n", agentID, resp.Message.Kind, resp.Message.From, resp.Message.Content)
			case wire.AgentJoined:
				fmt.Printf("[%s] agent joined: %s\n", agentID, resp.Presence.AgentID)
			case wire.AgentLeft:
				fmt.Printf("[%s] agent left: %s\n", agentID, resp.Presence.AgentID)
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("[%s]> ", agentID)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":

		case line == "/quit":
			return nil

		case line == "/list":
			agents, err := c.List()
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			fmt.Println("Connected agents:", strings.Join(agents, ", "))

		case strings.HasPrefix(line, "/msg "):
			parts := strings.SplitN(line[len("/msg "):], " ", 2)
			if len(parts) != 2 {
				fmt.Println("usage: /msg <id> <message>")
				break
			}
			report(c.Direct(parts[0], parts[1]))

		case strings.HasPrefix(line, "/mention "):
			parts := strings.SplitN(line[len("/mention "):], " ", 2)
			if len(parts) != 2 {
				fmt.Println("usage: /mention <id>[,<id>...] <message>")
				break
			}
			report(c.Mention(strings.Split(parts[0], ","), parts[1]))

		case strings.HasPrefix(line, "/broadcast "):
			report(c.Broadcast(line[len("/broadcast "):]))

		case line == "/graph":
			g, err := c.Graph()
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			printGraph(g)

		case line == "/scores":
			s, err := c.Scores()
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			printScores(s)

		default:
			fmt.Println("Unknown command. Type /list, /msg, /mention, /broadcast, /graph, /scores, or /quit")
		}

		fmt.Printf("[%s]> ", agentID)
	}

	return scanner.Err()
}

func report(ack *wire.AckPayload, err error) {
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("logged as event %d", ack.Seq)
	if len(ack.Delivered) > 0 {
		fmt.Printf(", delivered to %s", strings.Join(ack.Delivered, ", "))
	}
	if len(ack.Failed) > 0 {
		fmt.Printf(", offline: %s", strings.Join(ack.Failed, ", "))
	}
	fmt.Println()
}

func printGraph(g *wire.GraphPayload) {
	fmt.Println("Mention Graph")
	fmt.Println("=============")
	fmt.Printf("Nodes: %d\n", len(g.Nodes))
	fmt.Printf("Agents: %s\n", strings.Join(g.Nodes, ", "))
	fmt.Printf("Edges: %d\n", len(g.Edges))
	for _, e := range g.Edges {
		fmt.Printf("  %s -> %s (x%d)\n", e.From, e.To, e.Weight)
	}
}

func printScores(s *wire.ScoresPayload) {
	fmt.Println("Centrality Scores")
	fmt.Println("=================")
	if !s.Converged {
		fmt.Println("(iteration cap reached before convergence)")
	}

	type ranked struct {
		agent string
		score float64
	}
	list := make([]ranked, 0, len(s.Scores))
	for agent, score := range s.Scores {
		list = append(list, ranked{agent, score})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].agent < list[j].agent
	})

	for rank, r := range list {
		bar := strings.Repeat("#", int(r.score*20))
		fmt.Printf("  %d. %s: %.4f %s\n", rank+1, r.agent, r.score, bar)
	}
}
