// Package cli implements the interactive command-line interface for
// netpulse: live connection and server status, player lookups, and
// client controls.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/netpulse-project/netpulse/internal/client"
	"github.com/netpulse-project/netpulse/internal/config"
	"github.com/netpulse-project/netpulse/internal/events"
)

// CLI provides an interactive command-line interface.
type CLI struct {
	cfg     *config.Config
	network *client.Network
}

// NewCLI creates a new CLI handler.
func NewCLI(cfg *config.Config, network *client.Network) *CLI {
	return &CLI{
		cfg:     cfg,
		network: network,
	}
}

// Start begins the interactive CLI loop. It returns when the context is
// cancelled or stdin closes.
func (c *CLI) Start(ctx context.Context) {
	fmt.Println("\nnetpulse CLI ready. Type 'help' for available commands.")
	fmt.Println("─────────────────────────────────────────────────────")

	scanner := bufio.NewScanner(os.Stdin)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Print("netpulse> ")
		if !scanner.Scan() {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if err := c.execute(ctx, cmd, args); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

// execute processes a single CLI command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "servers":
		c.printServers()
	case "players", "p":
		return c.printPlayers(args)
	case "stats":
		c.printStats()
	case "maintenance", "maint":
		return c.cmdMaintenance(args)
	case "notices", "n":
		return c.cmdNotices(args)
	case "uptime":
		c.printUptime()
	case "connect":
		return c.network.Connect(ctx)
	case "disconnect":
		c.network.Disconnect()
		fmt.Println("Disconnected")
	case "pause":
		c.network.Pause()
		fmt.Println("Paused")
	case "resume":
		c.network.Resume(ctx)
		fmt.Println("Resumed")
	case "quit", "exit", "q":
		fmt.Println("Shutting down netpulse...")
		c.network.Bus().Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Printf("Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Println("\n╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                    netpulse CLI Commands                     ║")
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	fmt.Println("║  status             Show endpoint connection states          ║")
	fmt.Println("║  servers            Show all reconciled server records       ║")
	fmt.Println("║  players <server>   List players on a server                 ║")
	fmt.Println("║  stats              Show aggregate network stats             ║")
	fmt.Println("║  maintenance [on|off]  Show or force maintenance mode        ║")
	fmt.Println("║  notices [page]     Show or fetch the announcement page      ║")
	fmt.Println("║  uptime             Show interpolated network uptime         ║")
	fmt.Println("║  connect            Connect all endpoints                    ║")
	fmt.Println("║  disconnect         Disconnect all endpoints                 ║")
	fmt.Println("║  pause / resume     Suspend or restore connections           ║")
	fmt.Println("║  quit               Shutdown netpulse                        ║")
	fmt.Println("║  help               Show this help message                   ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// printStatus displays endpoint connection states in a table.
func (c *CLI) printStatus() {
	snap := c.network.Store().Connections()

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Endpoint", "State"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for name, state := range snap.Endpoints {
		tw.Append([]string{name, state.String()})
	}
	tw.Append([]string{"(overall)", snap.Overall.String()})

	tw.Render()
	if c.network.Paused() {
		fmt.Println("Client is paused.")
	}
	fmt.Println()
}

// printServers displays all server records in a table.
func (c *CLI) printServers() {
	servers := c.network.Store().Servers()

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"ID", "Name", "Status", "Players", "Max", "Last Update"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, rec := range servers {
		lastUpdate := "-"
		if !rec.LastUpdate.IsZero() {
			lastUpdate = rec.LastUpdate.Format(time.TimeOnly)
		}
		tw.Append([]string{
			rec.ID,
			rec.DisplayName,
			rec.Status,
			fmt.Sprintf("%d", rec.Players),
			fmt.Sprintf("%d", rec.MaxPlayers),
			lastUpdate,
		})
	}

	tw.Render()
	fmt.Println()
}

// printPlayers lists the name cache entries for one server.
func (c *CLI) printPlayers(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: players <server>")
	}

	players := c.network.Store().PlayersOn(args[0])
	if len(players) == 0 {
		fmt.Printf("No tracked players on %s\n", args[0])
		return nil
	}

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Name", "UUID", "Last Seen"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, p := range players {
		tw.Append([]string{p.DisplayName, p.UUID, p.LastSeen.Format(time.TimeOnly)})
	}

	tw.Render()
	fmt.Println()
	return nil
}

// printStats displays aggregate network stats.
func (c *CLI) printStats() {
	st := c.network.Store()
	stats := st.Stats()

	fmt.Printf("\n  Total players:   %d\n", stats.TotalPlayers)
	fmt.Printf("  Online servers:  %d\n", stats.OnlineServers)
	fmt.Printf("  Tracked players: %d\n", st.PlayerCount())
	fmt.Println()
}

// cmdMaintenance shows or forces maintenance mode.
func (c *CLI) cmdMaintenance(args []string) error {
	if len(args) == 0 {
		m := c.network.Store().Maintenance()
		fmt.Printf("\n  Maintenance: %v (forced: %v)\n", m.IsMaintenance, m.Forced)
		if m.StartTime != nil {
			fmt.Printf("  Started:     %s\n", m.StartTime.Format(time.RFC3339))
		}
		fmt.Println()
		return nil
	}

	switch strings.ToLower(args[0]) {
	case "on":
		c.network.ForceMaintenance(true)
		fmt.Println("Maintenance override set")
	case "off":
		c.network.ForceMaintenance(false)
		fmt.Println("Maintenance override cleared")
	default:
		return fmt.Errorf("usage: maintenance [on|off]")
	}
	return nil
}

// cmdNotices shows the loaded announcement page or requests another.
func (c *CLI) cmdNotices(args []string) error {
	if len(args) > 0 {
		page, err := strconv.Atoi(args[0])
		if err != nil || page < 1 {
			return fmt.Errorf("invalid page: %s", args[0])
		}
		if err := c.network.Store().RequestNotices(page, 0); err != nil {
			return err
		}
		fmt.Printf("Requested announcement page %d\n", page)
		return nil
	}

	np := c.network.Store().Notices()
	if np.Error != "" {
		fmt.Printf("Announcement fetch failed: %s\n", np.Error)
		return nil
	}
	if len(np.Notices) == 0 {
		fmt.Println("No announcements loaded. Use 'notices <page>' to fetch.")
		return nil
	}

	fmt.Printf("\n  Page %d of %d (has more: %v)\n\n", np.Page, np.TotalPages, np.HasMore)
	for _, n := range np.Notices {
		ts := time.UnixMilli(n.Time).Format("2006-01-02 15:04")
		fmt.Printf("  [%s] %s\n      %s\n", ts, n.Title, n.Text)
	}
	fmt.Println()
	return nil
}

// printUptime displays interpolated network uptime.
func (c *CLI) printUptime() {
	running, total, ok := c.network.Store().Uptime()
	if !ok {
		fmt.Println("Uptime unknown; no snapshot received yet.")
		return
	}
	fmt.Printf("\n  Running time: %s\n", formatSeconds(running))
	fmt.Printf("  Total:        %s\n", formatSeconds(total))
	fmt.Println()
}

func formatSeconds(s int64) string {
	d := time.Duration(s) * time.Second
	return d.String()
}
