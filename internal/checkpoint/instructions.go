package checkpoint

import "strings"

// pauseInstructions renders the continuation document for a manual pause:
// session id, timestamp, reason, the exact resume command, and a short log of
// recent repository history for orientation.
func pauseInstructions(snap *Snapshot, resumeCmd string, recentLog []string) string {
	var b strings.Builder
	b.WriteString("# Paused Session " + snap.SessionID + "\n\n")
	b.WriteString("- **Paused at:** " + snap.Timestamp + "\n")
	if snap.Task != "" {
		b.WriteString("- **Task:** " + snap.Task + "\n")
	}
	if snap.Member != "" {
		b.WriteString("- **Member:** " + snap.Member + "\n")
	}
	b.WriteString("- **Reason:** " + snap.Reason + "\n\n")

	b.WriteString("## Resume\n\n")
	b.WriteString("```\n" + resumeCmd + "\n```\n\n")

	if snap.Git != nil {
		if snap.Git.Committed {
			b.WriteString("Local changes were committed on branch `" + snap.Git.Branch + "` (" + snap.Git.Commit + ").\n\n")
		} else if snap.Git.HasChanges {
			b.WriteString("Local changes were preserved as a diff artifact next to this file.\n\n")
		}
	}

	if len(recentLog) > 0 {
		b.WriteString("## Recent history\n\n")
		for _, l := range recentLog {
			b.WriteString("- " + l + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// autoInstructions renders the continuation document written just before a
// context-destroying event. stamp is the artifact file-name fragment.
func autoInstructions(snap *Snapshot, resumeCmd, stamp string) string {
	var b strings.Builder
	b.WriteString("# Context Saved Before Compaction\n\n")
	b.WriteString("Session " + snap.SessionID + " was automatically checkpointed at " + snap.Timestamp + ".\n\n")

	if snap.Member != "" || snap.TaskRange != "" {
		b.WriteString("## Resume current work\n\n")
		if snap.Member != "" {
			b.WriteString("- **Member:** " + snap.Member + "\n")
		}
		if snap.Task != "" {
			b.WriteString("- **Task:** " + snap.Task + "\n")
		}
		if snap.TaskRange != "" {
			b.WriteString("- **Task range:** " + snap.TaskRange + "\n")
		}
		if snap.ContextMode != "" {
			b.WriteString("- **Coordination mode:** " + snap.ContextMode + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("```\n" + resumeCmd + "\n```\n\n")

	if snap.Git != nil && snap.Git.HasChanges {
		b.WriteString("## Git status\n\n")
		b.WriteString("Uncommitted changes were preserved as a diff artifact. Run `git status` after resuming.\n\n")
	}

	b.WriteString("## Artifacts\n\n")
	b.WriteString("- Snapshot: `checkpoint-" + stamp + ".json`\n")
	if snap.Git != nil && snap.Git.HasChanges {
		b.WriteString("- Diff: `diff-" + stamp + ".patch`\n")
	}
	if snap.TranscriptSaved {
		b.WriteString("- Transcript: `transcript-" + stamp + ".txt`\n")
	}
	return b.String()
}
