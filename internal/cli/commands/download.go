package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/spf13/cobra"

	"github.com/modelink/modelink/pkg/core"
)

// pollInterval is how often download progress is sampled.
const pollInterval = 250 * time.Millisecond

// NewDownloadCommand creates the download command.
func NewDownloadCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "download <url> <filename>",
		Short: "Download a model file into the library",
		Long: `Download fetches a model from a URL into the category's directory.
The transfer streams to a temporary file and only lands under its final
name when it completes, so an interrupted download leaves nothing behind.`,
		Example: `  # Download a checkpoint
  modelink download https://huggingface.co/.../v1-5-pruned-emaonly.safetensors \
      v1-5-pruned-emaonly.safetensors --category checkpoints`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			id, err := cmdCtx.Engine.StartDownload(cmd.Context(), args[0], args[1], category)
			if err != nil {
				return err
			}

			var snap core.DownloadJob
			if effectiveOutput(cmd) == "text" {
				snap, err = trackProgress(cmd, cmdCtx, id, args[1])
			} else {
				snap, err = waitQuietly(cmdCtx, id)
			}
			if err != nil {
				return err
			}

			switch snap.State {
			case core.JobCompleted:
				fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s (%s)\n",
					snap.TargetPath, formatBytes(snap.BytesDownloaded))
				return nil
			case core.JobCancelled:
				return fmt.Errorf("download cancelled")
			default:
				return fmt.Errorf("download failed: %s", snap.Error)
			}
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "checkpoints", "Target category directory")
	return cmd
}

// trackProgress renders a live progress bar until the job ends.
func trackProgress(cmd *cobra.Command, cmdCtx *CommandContext, id, filename string) (core.DownloadJob, error) {
	pw := progress.NewWriter()
	pw.SetOutputWriter(cmd.OutOrStdout())
	pw.SetUpdateFrequency(pollInterval)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Speed = true

	tracker := &progress.Tracker{
		Message: filename,
		Units:   progress.UnitsBytes,
	}
	pw.AppendTracker(tracker)
	go pw.Render()
	defer pw.Stop()

	cancelled := false
	for {
		snap, err := cmdCtx.Engine.Progress(id)
		if err != nil {
			return core.DownloadJob{}, err
		}
		if snap.SizeKnown() {
			tracker.UpdateTotal(snap.BytesTotal)
		}
		tracker.SetValue(snap.BytesDownloaded)
		if snap.State.Terminal() {
			if snap.State == core.JobCompleted {
				tracker.MarkAsDone()
			} else {
				tracker.MarkAsErrored()
			}
			return snap, nil
		}
		if !cancelled && cmd.Context().Err() != nil {
			// Ctrl-C cancels the transfer; the partial file is removed.
			_ = cmdCtx.Engine.CancelDownload(id)
			cancelled = true
		}
		time.Sleep(pollInterval)
	}
}

// waitQuietly polls without rendering, for scripted use.
func waitQuietly(cmdCtx *CommandContext, id string) (core.DownloadJob, error) {
	for {
		snap, err := cmdCtx.Engine.Progress(id)
		if err != nil {
			return core.DownloadJob{}, err
		}
		if snap.State.Terminal() {
			return snap, nil
		}
		time.Sleep(pollInterval)
	}
}
