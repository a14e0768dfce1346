package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/confsync/confsync/internal/engine"
	"github.com/confsync/confsync/internal/ui"
)

var (
	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	summaryOKStyle   = summaryBoxStyle.BorderForeground(lipgloss.Color("2"))
	summaryFailStyle = summaryBoxStyle.BorderForeground(lipgloss.Color("1"))
)

// renderReport prints the per-tool results followed by a summary box.
func renderReport(w io.Writer, report *engine.SyncReport) {
	for _, res := range report.Results {
		switch res.Status {
		case engine.StatusSuccess:
			fmt.Fprintf(w, "%s %d deployed, %d skipped\n",
				ui.StatusSuccess(res.Tool), res.FilesDeployed, res.FilesSkipped)
		case engine.StatusSkipped:
			fmt.Fprintf(w, "%s\n", ui.StatusSkipped(res.Tool+": "+res.Reason))
		case engine.StatusPartial:
			fmt.Fprintf(w, "%s %d deployed, some files failed\n",
				ui.StatusPartial(res.Tool), res.FilesDeployed)
		case engine.StatusFailed:
			fmt.Fprintf(w, "%s %s\n", ui.StatusError(res.Tool), res.Reason)
		}
	}

	for _, e := range report.Errors {
		fmt.Fprintf(w, "  %s %s\n", ui.Error("error:"), e.Error())
	}

	verb := "Synced"
	if report.DryRun {
		verb = "Would sync"
	}
	summary := fmt.Sprintf("%s %d file(s) across %d tool(s) in %s",
		verb, report.TotalFiles, len(report.Results),
		report.EndTime.Sub(report.StartTime).Round(time.Millisecond))
	if report.FromCache {
		summary += "\n" + ui.Warning("offline: used cached mirror")
	}

	style := summaryOKStyle
	if !report.Success {
		style = summaryFailStyle
		summary += "\n" + ui.Error(fmt.Sprintf("%d error(s)", len(report.Errors)))
	}
	fmt.Fprintln(w, style.Render(summary))
}

// renderPreviews prints the planned operations per tool.
func renderPreviews(w io.Writer, previews []engine.ToolPreview) {
	for _, p := range previews {
		if !p.Installed {
			fmt.Fprintf(w, "%s\n", ui.StatusSkipped(p.Tool+": "+p.Reason))
			continue
		}
		if len(p.Items) == 0 {
			fmt.Fprintf(w, "%s\n", ui.StatusSkipped(p.Tool+": no files mapped"))
			continue
		}
		fmt.Fprintf(w, "%s\n", ui.Header(p.Tool))
		for _, item := range p.Items {
			fmt.Fprintf(w, "  %-9s %s %s\n", item.Action, item.TargetPath,
				ui.Dim("("+string(item.Scope)+")"))
		}
	}
}

// renderStatus prints repository and per-tool status.
func renderStatus(w io.Writer, report *engine.StatusReport) {
	fmt.Fprintf(w, "%s %s\n", ui.Header("Repository:"), orNone(report.RepositoryURL))
	if report.Profile != "" {
		fmt.Fprintf(w, "%s %s\n", ui.Header("Profile:"), report.Profile)
	}
	if report.Repo != nil && report.Repo.Exists {
		fmt.Fprintf(w, "%s %s @ %s\n", ui.Header("Mirror:"), report.Repo.Branch, short(report.Repo.Commit))
	} else {
		fmt.Fprintf(w, "%s not cloned yet\n", ui.Header("Mirror:"))
	}
	if !report.LastGlobalSync.IsZero() {
		fmt.Fprintf(w, "%s %s\n", ui.Header("Last sync:"), report.LastGlobalSync.Format(time.RFC3339))
	}

	fmt.Fprintln(w)
	for _, t := range report.Tools {
		if !t.Result.Installed {
			fmt.Fprintf(w, "%s\n", ui.StatusSkipped(t.Name+": "+t.Result.Reason))
			continue
		}
		line := fmt.Sprintf("%s %s", t.Name, ui.Dim(t.Result.Location))
		if !t.LastSync.IsZero() {
			line += ui.Dim(" synced " + t.LastSync.Format(time.RFC3339))
		}
		fmt.Fprintf(w, "%s\n", ui.StatusSuccess(line))
	}
}

// renderDetections prints detection results.
func renderDetections(w io.Writer, detections []engine.ToolDetection) {
	for _, d := range detections {
		if d.Result.Installed {
			fmt.Fprintf(w, "%s %s\n", ui.StatusSuccess(d.Name), ui.Dim(d.Result.Location))
		} else {
			fmt.Fprintf(w, "%s\n", ui.StatusSkipped(d.Name+": "+d.Result.Reason))
		}
	}
}

// renderDiff prints pending changes, or a clean-tree message.
func renderDiff(w io.Writer, changes []engine.Change) {
	if len(changes) == 0 {
		fmt.Fprintln(w, ui.StatusSuccess("all destinations match the mirror"))
		return
	}
	for _, c := range changes {
		symbol := ui.Success("+")
		if c.Kind == engine.ChangeModified {
			symbol = ui.Warning("~")
		}
		fmt.Fprintf(w, "%s %s %s %s\n", symbol, c.Tool, c.TargetPath, ui.Dim("("+string(c.Scope)+")"))
	}
}

// renderValidations prints validation outcomes and reports overall success.
func renderValidations(w io.Writer, validations []engine.ToolValidation) bool {
	ok := true
	for _, v := range validations {
		if len(v.Result.Invalid) == 0 {
			fmt.Fprintf(w, "%s %d file(s) valid\n", ui.StatusSuccess(v.Tool), len(v.Result.Valid))
			continue
		}
		ok = false
		fmt.Fprintf(w, "%s\n", ui.StatusError(v.Tool))
		for _, inv := range v.Result.Invalid {
			fmt.Fprintf(w, "  %s: %s\n", inv.Path, inv.Reason)
		}
	}
	return ok
}

func orNone(s string) string {
	if s == "" {
		return ui.Dim("(not configured)")
	}
	return s
}

func short(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}
