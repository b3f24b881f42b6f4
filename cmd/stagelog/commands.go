package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/stagelog/internal/config"
	"github.com/kalambet/stagelog/internal/journal"
	"github.com/kalambet/stagelog/internal/settings"
	"github.com/kalambet/stagelog/internal/shows"
	"github.com/kalambet/stagelog/internal/ticket"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseCast reads cast flags of the form "Role=Actor" or just "Actor".
func parseCast(values []string) ([]journal.CastMember, error) {
	cast := make([]journal.CastMember, 0, len(values))
	for _, v := range values {
		role, actor, found := strings.Cut(v, "=")
		if !found {
			role, actor = "", v
		}
		role, actor = strings.TrimSpace(role), strings.TrimSpace(actor)
		if actor == "" {
			return nil, fmt.Errorf("cast entry %q has no actor", v)
		}
		cast = append(cast, journal.CastMember{Role: role, Actor: actor})
	}
	return cast, nil
}

func addRecordFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "show title")
	cmd.Flags().String("date", "", "performance date (YYYY-MM-DD)")
	cmd.Flags().String("time", "", "curtain time (HH:MM)")
	cmd.Flags().String("location", "", "venue")
	cmd.Flags().Float64("price", 0, "ticket price")
	cmd.Flags().String("notes", "", "free-form notes")
	cmd.Flags().StringArray("cast", nil, `cast member as "Role=Actor" (repeatable)`)
}

// applyRecordFlags copies the flags the user set onto rec.
func applyRecordFlags(cmd *cobra.Command, rec *journal.Record) error {
	f := cmd.Flags()
	if f.Changed("title") {
		rec.Title, _ = f.GetString("title")
	}
	if f.Changed("date") {
		rec.Date, _ = f.GetString("date")
	}
	if f.Changed("time") {
		rec.Time, _ = f.GetString("time")
	}
	if f.Changed("location") {
		rec.Location, _ = f.GetString("location")
	}
	if f.Changed("price") {
		p, _ := f.GetFloat64("price")
		rec.Price = journal.NewPrice(p)
	}
	if f.Changed("notes") {
		rec.Notes, _ = f.GetString("notes")
	}
	if f.Changed("cast") {
		values, _ := f.GetStringArray("cast")
		cast, err := parseCast(values)
		if err != nil {
			return err
		}
		rec.Cast = cast
	}
	return nil
}

// parseTicketFile sends a ticket file to the server. PDFs are sent as is;
// anything else is read as text. "-" reads text from stdin.
func parseTicketFile(ctx context.Context, client *apiClient, path string) (ticket.Draft, error) {
	var draft ticket.Draft
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		data, err := os.ReadFile(path)
		if err != nil {
			return draft, fmt.Errorf("reading ticket: %w", err)
		}
		resp, err := client.send(ctx, "POST", "/tickets/parse", bytes.NewReader(data), "application/pdf")
		if err != nil {
			return draft, err
		}
		return draft, decodeJSON(resp, &draft)
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return draft, fmt.Errorf("reading ticket: %w", err)
	}
	resp, err := client.post(ctx, "/tickets/parse", map[string]string{"text": string(data)})
	if err != nil {
		return draft, err
	}
	return draft, decodeJSON(resp, &draft)
}

// --- add / edit / rm ---

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a show to the journal",
	Long: `Add a show to the journal. Whether it is watched or upcoming follows from the date.

Examples:
  stagelog add --title "Hamlet" --date 2024-06-01 --time 19:30 --location "上海大剧院" --price 380
  stagelog add --title "Cats" --cast "Grizabella=Han Mei" --cast "Old Deuteronomy=Li Lei" --date 2024-07-01
  stagelog add --ticket ./eticket.pdf --title "Les Misérables"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		rec := journal.Record{}
		if path, _ := cmd.Flags().GetString("ticket"); path != "" {
			draft, err := parseTicketFile(ctx, client, path)
			if err != nil {
				return err
			}
			rec = draft.Record()
		}
		if err := applyRecordFlags(cmd, &rec); err != nil {
			return err
		}

		resp, err := client.post(ctx, "/shows", rec)
		if err != nil {
			return err
		}
		var saved journal.Record
		if err := decodeJSON(resp, &saved); err != nil {
			return err
		}
		printSuccess("Added %s on %s (%s) as %s", saved.Title, saved.Date, saved.Status, saved.ID)
		return nil
	},
}

func init() {
	addRecordFlags(addCmd)
	addCmd.Flags().String("ticket", "", "prefill from a ticket file (.pdf or text, - for stdin)")
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of a show",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(ctx, "/shows/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var rec journal.Record
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}
		if err := applyRecordFlags(cmd, &rec); err != nil {
			return err
		}

		resp, err = client.put(ctx, "/shows/"+url.PathEscape(args[0]), rec)
		if err != nil {
			return err
		}
		var saved journal.Record
		if err := decodeJSON(resp, &saved); err != nil {
			return err
		}
		printSuccess("Updated %s (%s)", saved.Title, saved.Status)
		return nil
	},
}

func init() {
	addRecordFlags(editCmd)
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a show",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/shows/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted %s", args[0])
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every show",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL shows. Use --confirm to proceed.")
			return nil
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/shows?confirm=true")
		if err != nil {
			return err
		}
		var result struct {
			Count int `json:"count"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted %d shows", result.Count)
		return nil
	},
}

func init() {
	clearCmd.Flags().Bool("confirm", false, "confirm deleting everything")
}

// --- read views ---

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a single show as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/shows/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var rec journal.Record
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}
		return printJSON(rec)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List shows",
	Long: `List shows. upcoming is soonest first (today counts as upcoming),
history is most recent first, all is the stored order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bucket, _ := cmd.Flags().GetString("bucket")
		asJSON, _ := cmd.Flags().GetBool("json")

		path := "/shows"
		title := "All shows"
		switch bucket {
		case "all", "":
		case "upcoming":
			path, title = "/shows/upcoming", "Upcoming"
		case "history":
			path, title = "/shows/history", "History"
		default:
			return fmt.Errorf("unknown bucket %q: use upcoming, history or all", bucket)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var v shows.View
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}
		if asJSON {
			return printJSON(v)
		}
		fmt.Print(renderMarkdown(recordsMarkdown(title, v.Records) + warningsMarkdown(v.Warnings)))
		return nil
	},
}

func init() {
	listCmd.Flags().String("bucket", "all", "upcoming, history or all")
	listCmd.Flags().Bool("json", false, "print JSON")
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search titles, venues, notes and cast",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/search?q="+url.QueryEscape(query))
		if err != nil {
			return err
		}
		var v shows.View
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}
		if v.Count == 0 {
			fmt.Println("No shows found.")
			return nil
		}
		fmt.Print(renderMarkdown(recordsMarkdown(fmt.Sprintf("Results for %q", query), v.Records)))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Totals and venues of watched shows in a day, month or year",
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, _ := cmd.Flags().GetString("range")
		anchor, _ := cmd.Flags().GetString("anchor")
		shift, _ := cmd.Flags().GetInt("shift")

		q := url.Values{}
		q.Set("range", rng)
		if anchor != "" {
			q.Set("anchor", anchor)
		}
		if shift != 0 {
			q.Set("shift", fmt.Sprint(shift))
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/stats?"+q.Encode())
		if err != nil {
			return err
		}
		var rep shows.StatsReport
		if err := decodeJSON(resp, &rep); err != nil {
			return err
		}
		fmt.Print(renderMarkdown(statsMarkdown(rep)))
		return nil
	},
}

func init() {
	statsCmd.Flags().String("range", "month", "day, month or year")
	statsCmd.Flags().String("anchor", "", "a date inside the range (default today)")
	statsCmd.Flags().Int("shift", 0, "move the range by this many periods")
}

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "Show achievement badges",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/badges")
		if err != nil {
			return err
		}
		var badges []shows.BadgeStatus
		if err := decodeJSON(resp, &badges); err != nil {
			return err
		}
		fmt.Print(renderMarkdown(badgesMarkdown(badges)))
		return nil
	},
}

func yearMonthQuery(cmd *cobra.Command) string {
	q := url.Values{}
	if y, _ := cmd.Flags().GetInt("year"); y != 0 {
		q.Set("year", fmt.Sprint(y))
	}
	if m, _ := cmd.Flags().GetInt("month"); m != 0 {
		q.Set("month", fmt.Sprint(m))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Show a month calendar of watched shows",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/calendar"+yearMonthQuery(cmd))
		if err != nil {
			return err
		}
		var cal shows.CalendarMonth
		if err := decodeJSON(resp, &cal); err != nil {
			return err
		}
		fmt.Print(renderMarkdown(calendarMarkdown(cal)))
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Write a short recap of a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/summary"+yearMonthQuery(cmd))
		if err != nil {
			return err
		}
		var env struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
			Data    struct {
				Month string `json:"month"`
				Text  string `json:"text"`
			} `json:"data"`
		}
		if err := decodeJSON(resp, &env); err != nil {
			return err
		}
		if !env.Success {
			return fmt.Errorf("summary failed: %s", env.Error)
		}
		fmt.Print(renderMarkdown(fmt.Sprintf("# %s\n\n%s\n", env.Data.Month, env.Data.Text)))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{calendarCmd, summaryCmd} {
		c.Flags().Int("year", 0, "year (default current)")
		c.Flags().Int("month", 0, "month 1-12 (default current)")
	}
}

// --- tickets and venues ---

var parseCmd = &cobra.Command{
	Use:   "parse <file|->",
	Short: "Read date, time, venue and price from a ticket without saving",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		draft, err := parseTicketFile(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}
		return printJSON(draft)
	},
}

var venuesCmd = &cobra.Command{
	Use:   "venues [city]",
	Short: "List known venues",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			list := ticket.VenuesIn(args[0])
			if list == nil {
				return fmt.Errorf("no venues known for %q", args[0])
			}
			for _, v := range list {
				fmt.Println(v)
			}
			return nil
		}
		for _, c := range ticket.Venues() {
			fmt.Printf("%s\n", colorize(colorBold, c.Name))
			for _, v := range c.Venues {
				fmt.Printf("  %s\n", v)
			}
		}
		return nil
	},
}

// --- export / backup ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored record array as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/export")
		if err != nil {
			return err
		}
		var raw json.RawMessage
		if err := decodeJSON(resp, &raw); err != nil {
			return err
		}

		if output == "" {
			_, err := os.Stdout.Write(append(raw, '\n'))
			return err
		}
		if err := os.WriteFile(output, raw, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		printSuccess("Records exported to %s", output)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "", "output file path (default: stdout)")
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a snapshot to object storage, or list snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, _ := cmd.Flags().GetBool("list")
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if list {
			resp, err := client.get(cmd.Context(), "/backups")
			if err != nil {
				return err
			}
			var objs []struct {
				Key          string `json:"key"`
				Size         int64  `json:"size"`
				LastModified string `json:"last_modified"`
			}
			if err := decodeJSON(resp, &objs); err != nil {
				return err
			}
			if len(objs) == 0 {
				fmt.Println("No snapshots.")
			}
			for _, o := range objs {
				fmt.Printf("%s  %8d  %s\n", colorize(colorCyan, o.Key), o.Size, o.LastModified)
			}
			return nil
		}

		resp, err := client.post(cmd.Context(), "/backup", nil)
		if err != nil {
			return err
		}
		var obj struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
		}
		if err := decodeJSON(resp, &obj); err != nil {
			return err
		}
		printSuccess("Uploaded %s (%d bytes)", obj.Key, obj.Size)
		return nil
	},
}

func init() {
	backupCmd.Flags().Bool("list", false, "list existing snapshots")
}

// --- mirror ---

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Inspect the cloud mirror queue",
}

var mirrorRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Give failed mirror jobs another round of attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/mirror/retry", nil)
		if err != nil {
			return err
		}
		var result struct {
			Retried int64 `json:"retried"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Requeued %d failed mirror jobs", result.Retried)
		return nil
	},
}

func init() {
	mirrorCmd.AddCommand(mirrorRetryCmd)
}

// --- settings ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the session and theme",
}

func patchSettings(cmd *cobra.Command, patch map[string]any) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := client.patch(cmd.Context(), "/settings", patch)
	if err != nil {
		return err
	}
	var s settings.Session
	if err := decodeJSON(resp, &s); err != nil {
		return err
	}
	printSession(s)
	return nil
}

func printSession(s settings.Session) {
	user := "(logged out)"
	if s.IsLoggedIn {
		user = s.Username
	}
	printStatus("User", "%s", user)
	printStatus("Theme", "%s", s.Theme)
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/settings")
		if err != nil {
			return err
		}
		var s settings.Session
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}
		printSession(s)
		return nil
	},
}

var settingsThemeCmd = &cobra.Command{
	Use:   "theme <light|dark|toggle>",
	Short: "Set the display theme",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] != "toggle" {
			if _, err := settings.ParseTheme(args[0]); err != nil {
				return err
			}
		}
		return patchSettings(cmd, map[string]any{"theme": args[0]})
	},
}

var settingsLoginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Set the current user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patchSettings(cmd, map[string]any{"username": args[0]})
	},
}

var settingsLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the current user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return patchSettings(cmd, map[string]any{"isLoggedIn": false})
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsThemeCmd, settingsLoginCmd, settingsLogoutCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
