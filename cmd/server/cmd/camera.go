package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"camera-relay/internal/camera"
	"camera-relay/internal/platform/database"
	"camera-relay/internal/quality"
)

var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Manage camera configuration records",
}

var cameraAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Create or replace a camera record",
	Long: `Create or replace a camera record.

Either give --source-uri, or any of --host, --port, --username and
--password; unset fields fall back to the vendor defaults when the
relay address is resolved.`,
	Args: cobra.ExactArgs(1),
	RunE: runCameraAdd,
}

var cameraListCmd = &cobra.Command{
	Use:   "list",
	Short: "List camera records",
	Args:  cobra.NoArgs,
	RunE:  runCameraList,
}

var cameraRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a camera record",
	Args:  cobra.ExactArgs(1),
	RunE:  runCameraRemove,
}

func init() {
	rootCmd.AddCommand(cameraCmd)
	cameraCmd.AddCommand(cameraAddCmd, cameraListCmd, cameraRemoveCmd)

	f := cameraAddCmd.Flags()
	f.String("name", "", "Display name")
	f.String("source-uri", "", "Explicit stream address; overrides all address fields")
	f.String("host", "", "Device host or IP")
	f.Int("port", 0, "RTSP port")
	f.String("username", "", "Device username")
	f.String("password", "", "Device password")
	f.String("tier", "", fmt.Sprintf("Quality tier %v (default %s)", quality.Tiers(), quality.DefaultTier))
}

// withRepository opens the configured store, runs fn and closes it.
func withRepository(ctx context.Context, fn func(camera.Repository) error) error {
	db, err := database.Open(appConfig.Database, appLogger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	store := camera.NewGormStore(db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	return fn(store)
}

func runCameraAdd(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	name, _ := f.GetString("name")
	source, _ := f.GetString("source-uri")
	host, _ := f.GetString("host")
	port, _ := f.GetInt("port")
	username, _ := f.GetString("username")
	password, _ := f.GetString("password")
	tier, _ := f.GetString("tier")

	cfg := camera.Config{
		ID:          args[0],
		Name:        name,
		SourceURI:   camera.String(source),
		Host:        camera.String(host),
		Port:        camera.Int(port),
		Username:    camera.String(username),
		Password:    camera.String(password),
		QualityTier: camera.String(tier),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return withRepository(cmd.Context(), func(repo camera.Repository) error {
		if err := repo.SaveCameraConfig(cmd.Context(), cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved camera %s (tier %s)\n", cfg.ID, quality.Resolve(cfg.Tier()).Tier)
		return nil
	})
}

func runCameraList(cmd *cobra.Command, _ []string) error {
	return withRepository(cmd.Context(), func(repo camera.Repository) error {
		cams, err := repo.ListCameraConfigs(cmd.Context())
		if err != nil {
			return err
		}
		return printCameras(cmd.OutOrStdout(), cams)
	})
}

func runCameraRemove(cmd *cobra.Command, args []string) error {
	return withRepository(cmd.Context(), func(repo camera.Repository) error {
		if err := repo.DeleteCameraConfig(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed camera %s\n", args[0])
		return nil
	})
}

// printCameras writes one row per camera. Source addresses are shown with
// passwords redacted.
func printCameras(w io.Writer, cams []camera.Config) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTIER\tRESOLUTION\tONLINE\tSOURCE")
	for _, c := range cams {
		p := quality.Resolve(c.Tier())
		source := camera.ResolveSourceURI(c)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n", c.ID, c.Name, p.Tier, p.Resolution(), c.Online, camera.RedactURI(source))
	}
	return tw.Flush()
}
