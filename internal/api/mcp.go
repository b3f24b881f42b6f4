package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/stagelog/internal/journal"
	"github.com/kalambet/stagelog/internal/settings"
	"github.com/kalambet/stagelog/internal/shows"
	"github.com/kalambet/stagelog/internal/storage"
	"github.com/kalambet/stagelog/internal/summary"
	"github.com/kalambet/stagelog/internal/ticket"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Shows      *shows.Service
	Settings   *settings.Manager
	Summarizer *summary.Summarizer // optional; nil answers with the missing key hint
}

// NewMCPServer creates an MCP server exposing the journal as agent tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.Summarizer == nil {
		deps.Summarizer = summary.New(nil, nil, nil)
	}

	s := server.NewMCPServer(
		"stagelog",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("stagelog is a personal theater journal: shows watched, shows ahead, stats, badges and a calendar."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_shows",
			mcp.WithDescription("List journal records. upcoming is soonest first, history is most recent first, all is stored order."),
			mcp.WithString("bucket", mcp.Description("upcoming, history or all (default all)")),
		),
		mcpListShows(deps),
	)

	s.AddTool(
		mcp.NewTool("get_show",
			mcp.WithDescription("Fetch a single record by id."),
			mcp.WithString("id", mcp.Description("Record id"), mcp.Required()),
		),
		mcpGetShow(deps),
	)

	s.AddTool(
		mcp.NewTool("add_show",
			mcp.WithDescription("Add a show to the journal. The status is derived from the date."),
			mcp.WithString("title", mcp.Description("Show title"), mcp.Required()),
			mcp.WithString("date", mcp.Description("Performance date, YYYY-MM-DD"), mcp.Required()),
			mcp.WithString("time", mcp.Description("Curtain time, HH:MM")),
			mcp.WithString("location", mcp.Description("Venue")),
			mcp.WithNumber("price", mcp.Description("Ticket price")),
			mcp.WithString("cast", mcp.Description("JSON array of {role, actor} objects")),
			mcp.WithString("notes", mcp.Description("Free-form notes")),
		),
		mcpAddShow(deps),
	)

	s.AddTool(
		mcp.NewTool("update_show",
			mcp.WithDescription("Change fields of an existing record. Omitted fields keep their value."),
			mcp.WithString("id", mcp.Description("Record id"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Show title")),
			mcp.WithString("date", mcp.Description("Performance date, YYYY-MM-DD")),
			mcp.WithString("time", mcp.Description("Curtain time, HH:MM")),
			mcp.WithString("location", mcp.Description("Venue")),
			mcp.WithNumber("price", mcp.Description("Ticket price")),
			mcp.WithString("cast", mcp.Description("JSON array of {role, actor} objects")),
			mcp.WithString("notes", mcp.Description("Free-form notes")),
		),
		mcpUpdateShow(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_show",
			mcp.WithDescription("Delete a record by id."),
			mcp.WithString("id", mcp.Description("Record id"), mcp.Required()),
		),
		mcpDeleteShow(deps),
	)

	s.AddTool(
		mcp.NewTool("search_shows",
			mcp.WithDescription("Case-insensitive search over title, venue, notes and cast."),
			mcp.WithString("query", mcp.Description("Keyword"), mcp.Required()),
		),
		mcpSearchShows(deps),
	)

	s.AddTool(
		mcp.NewTool("show_stats",
			mcp.WithDescription("Totals, spend and venue distribution of watched shows in a day, month or year."),
			mcp.WithString("range", mcp.Description("day, month or year (default month)")),
			mcp.WithString("anchor", mcp.Description("Any date inside the range, YYYY-MM-DD (default today)")),
			mcp.WithNumber("shift", mcp.Description("Move the range by this many periods")),
		),
		mcpShowStats(deps),
	)

	s.AddTool(
		mcp.NewTool("list_badges",
			mcp.WithDescription("Achievement badges and whether each is earned."),
		),
		mcpListBadges(deps),
	)

	s.AddTool(
		mcp.NewTool("month_calendar",
			mcp.WithDescription("Calendar grid of a month with the watched shows on their days."),
			mcp.WithNumber("year", mcp.Description("Year (default current)")),
			mcp.WithNumber("month", mcp.Description("Month 1-12 (default current)")),
		),
		mcpMonthCalendar(deps),
	)

	s.AddTool(
		mcp.NewTool("monthly_summary",
			mcp.WithDescription("A short written recap of the shows watched in a month."),
			mcp.WithNumber("year", mcp.Description("Year (default current)")),
			mcp.WithNumber("month", mcp.Description("Month 1-12 (default current)")),
		),
		mcpMonthlySummary(deps),
	)

	s.AddTool(
		mcp.NewTool("parse_ticket",
			mcp.WithDescription("Read date, time, venue and price out of pasted ticket text. Nothing is saved."),
			mcp.WithString("text", mcp.Description("Ticket text"), mcp.Required()),
		),
		mcpParseTicket(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"journal://upcoming",
			"Upcoming Shows",
			mcp.WithResourceDescription("Shows not yet watched, soonest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceUpcoming(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"journal://settings",
			"Session Settings",
			mcp.WithResourceDescription("Current user and display theme"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSettings(deps),
	)

	return s
}

func mcpListShows(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var (
			v   shows.View
			err error
		)
		switch bucket := req.GetString("bucket", "all"); bucket {
		case "all", "":
			var recs []journal.Record
			recs, err = deps.Shows.List(ctx)
			if recs == nil {
				recs = []journal.Record{}
			}
			v = shows.View{Records: recs, Count: len(recs), Warnings: []journal.MalformedDate{}}
		case string(journal.BucketUpcoming):
			v, err = deps.Shows.Upcoming(ctx)
		case string(journal.BucketHistory):
			v, err = deps.Shows.History(ctx)
		default:
			return mcpError(fmt.Sprintf("unknown bucket %q: use upcoming, history or all", bucket)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("listing shows failed: %v", err)), nil
		}
		return mcpJSON(v)
	}
}

func mcpGetShow(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		rec, err := deps.Shows.Get(ctx, id)
		if err != nil {
			return mcpServiceError(err), nil
		}
		return mcpJSON(rec)
	}
}

// applyArgs copies the record fields present in the request onto rec.
func applyArgs(req mcp.CallToolRequest, rec *journal.Record) error {
	args := req.GetArguments()
	if _, ok := args["title"]; ok {
		rec.Title = req.GetString("title", "")
	}
	if _, ok := args["date"]; ok {
		rec.Date = req.GetString("date", "")
	}
	if _, ok := args["time"]; ok {
		rec.Time = req.GetString("time", "")
	}
	if _, ok := args["location"]; ok {
		rec.Location = req.GetString("location", "")
	}
	if _, ok := args["price"]; ok {
		rec.Price = journal.NewPrice(req.GetFloat("price", 0))
	}
	if _, ok := args["notes"]; ok {
		rec.Notes = req.GetString("notes", "")
	}
	if _, ok := args["cast"]; ok {
		var cast []journal.CastMember
		if raw := req.GetString("cast", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &cast); err != nil {
				return fmt.Errorf("invalid cast JSON: %w", err)
			}
		}
		rec.Cast = cast
	}
	return nil
}

func mcpAddShow(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if _, err := req.RequireString("title"); err != nil {
			return mcpError("title is required"), nil
		}
		if _, err := req.RequireString("date"); err != nil {
			return mcpError("date is required"), nil
		}
		var rec journal.Record
		if err := applyArgs(req, &rec); err != nil {
			return mcpError(err.Error()), nil
		}
		saved, err := deps.Shows.Create(ctx, rec)
		if err != nil {
			return mcpServiceError(err), nil
		}
		return mcpJSON(saved)
	}
}

func mcpUpdateShow(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		rec, err := deps.Shows.Get(ctx, id)
		if err != nil {
			return mcpServiceError(err), nil
		}
		if err := applyArgs(req, &rec); err != nil {
			return mcpError(err.Error()), nil
		}
		saved, err := deps.Shows.Update(ctx, id, rec)
		if err != nil {
			return mcpServiceError(err), nil
		}
		return mcpJSON(saved)
	}
}

func mcpDeleteShow(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		if err := deps.Shows.Delete(ctx, id); err != nil {
			return mcpServiceError(err), nil
		}
		return mcpText(fmt.Sprintf("Deleted show %s", id)), nil
	}
}

func mcpSearchShows(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		v, err := deps.Shows.Search(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcpJSON(v)
	}
}

func mcpShowStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rng := journal.Range{Kind: journal.RangeMonth, Anchor: deps.Shows.Today()}
		if s := req.GetString("range", ""); s != "" {
			k, err := journal.ParseRangeKind(s)
			if err != nil {
				return mcpError(err.Error()), nil
			}
			rng.Kind = k
		}
		if s := req.GetString("anchor", ""); s != "" {
			d, err := journal.ParseDate(s)
			if err != nil {
				return mcpError(fmt.Sprintf("invalid anchor %q", s)), nil
			}
			rng.Anchor = d
		}
		if n := req.GetInt("shift", 0); n != 0 {
			rng.Anchor = journal.ShiftAnchor(rng, n)
		}
		rep, err := deps.Shows.Stats(ctx, rng)
		if err != nil {
			return mcpError(fmt.Sprintf("stats failed: %v", err)), nil
		}
		return mcpJSON(rep)
	}
}

func mcpListBadges(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		badges, err := deps.Shows.Badges(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("evaluating badges failed: %v", err)), nil
		}
		return mcpJSON(badges)
	}
}

func mcpYearMonth(deps MCPDeps, req mcp.CallToolRequest) (int, time.Month, error) {
	today := deps.Shows.Today()
	year := req.GetInt("year", today.Year())
	month := req.GetInt("month", int(today.Month()))
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("month must be 1-12, got %d", month)
	}
	return year, time.Month(month), nil
}

func mcpMonthCalendar(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		year, month, err := mcpYearMonth(deps, req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		cal, err := deps.Shows.Calendar(ctx, year, month)
		if err != nil {
			return mcpServiceError(err), nil
		}
		return mcpJSON(cal)
	}
}

func mcpMonthlySummary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		year, month, err := mcpYearMonth(deps, req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		recs, err := deps.Shows.WatchedInMonth(ctx, year, month)
		if err != nil {
			return mcpError(fmt.Sprintf("loading month failed: %v", err)), nil
		}
		res := deps.Summarizer.Summarize(ctx, fmt.Sprintf("%04d-%02d", year, month), recs)
		return mcpText(res.Text), nil
	}
}

func mcpParseTicket(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		return mcpJSON(ticket.ParseText(text, deps.Shows.Today().Year()))
	}
}

func mcpResourceUpcoming(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		v, err := deps.Shows.Upcoming(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list upcoming shows: %w", err)
		}
		return jsonResource(req.Params.URI, v)
	}
}

func mcpResourceSettings(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		s, err := deps.Settings.Get()
		if err != nil {
			return nil, fmt.Errorf("failed to get settings: %w", err)
		}
		return jsonResource(req.Params.URI, s)
	}
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpServiceError(err error) *mcp.CallToolResult {
	var ve *journal.ValidationError
	switch {
	case errors.As(err, &ve):
		return mcpError(ve.Error())
	case errors.Is(err, storage.ErrNotFound):
		return mcpError("show not found")
	case errors.Is(err, storage.ErrDuplicateID):
		return mcpError("show id already exists")
	}
	return mcpError(fmt.Sprintf("operation failed: %v", err))
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
