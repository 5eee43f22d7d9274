package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"feedsync/internal/app"
	"feedsync/internal/config"
	"feedsync/internal/feed"
	"feedsync/internal/model"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a FeedApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "feed", "like").
func newApp(cmd *cobra.Command, operation string, args []string) (*app.FeedApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewFeedApp(cmd.Context(), cfg, operation, args, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "feedsync",
	Short:        "Social feed client",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if url, _ := cmd.Flags().GetString("api-url"); url != "" {
			cfg.HTTP.BaseURL = url
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("API URL:  %s\n", cfg.HTTP.BaseURL)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("API URL:  %s (timeout %s)\n", cfg.HTTP.BaseURL, cfg.HTTP.Timeout())
		fmt.Printf("Session:  %s (sealer %s)\n", cfg.Session.Type, cfg.Session.Sealer.Type)
		fmt.Printf("Blobs:    %s\n", cfg.Blob.Type)
		fmt.Printf("Journal:  %s\n", cfg.Journal.Type)
		return nil
	},
}

// login command
var loginCmd = &cobra.Command{
	Use:   "login [TOKEN]",
	Short: "Sign in with a bearer token",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := ""
		if len(args) > 0 {
			token = args[0]
		} else {
			t, err := readToken()
			if err != nil {
				return err
			}
			token = t
		}

		a, err := newApp(cmd, "login", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.SignIn(cmd.Context(), token)
		if err != nil {
			return fmt.Errorf("signing in: %w", err)
		}
		fmt.Printf("Signed in as %s (%s)\n", user.Email, user.ID)
		return nil
	},
}

// readToken prompts for a token without echo when stdin is a terminal, and
// reads one line otherwise.
func readToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Token: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "logout", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SignOut(cmd.Context()); err != nil {
			return fmt.Errorf("signing out: %w", err)
		}
		fmt.Println("Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "whoami", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		id := a.Identity()
		if !id.IsPresent() {
			fmt.Println("Not signed in.")
			return nil
		}
		fmt.Printf("%s (%s)\n", id.User.Email, id.User.ID)
		return nil
	},
}

// feed command
var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show the timeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")

		a, err := newApp(cmd, "feed", args)
		if err != nil {
			return err
		}
		defer a.Close()

		posts, err := a.Timeline(cmd.Context(), query)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			fmt.Println("No posts.")
			return nil
		}
		for _, p := range posts {
			printPost(a, p, "")
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show POST_ID",
	Short: "Show a post and its replies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "show", args)
		if err != nil {
			return err
		}
		defer a.Close()

		posts, err := a.Thread(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for i, p := range posts {
			indent := ""
			if i > 0 {
				indent = "    "
			}
			printPost(a, p, indent)
		}
		return nil
	},
}

func printPost(a *app.FeedApp, p model.Post, indent string) {
	liked := " "
	if p.LikedByMe {
		liked = "*"
	}
	fmt.Printf("%s%s  @%s  %s\n", indent, p.ID, p.AuthorName, feed.RelativeTime(a.Now(), p.CreatedAt))
	fmt.Printf("%s  %s\n", indent, p.Content)
	if url := p.ImageURL.Or(""); url != "" {
		fmt.Printf("%s  [image] %s\n", indent, url)
	}
	fmt.Printf("%s  %s%d likes  %d replies\n", indent, liked, p.LikeCount, p.ReplyCount)
}

var postCmd = &cobra.Command{
	Use:   "post CONTENT",
	Short: "Publish a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, _ := cmd.Flags().GetString("image")

		a, err := newApp(cmd, "post", args)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Post(cmd.Context(), args[0], image)
		if err != nil {
			return fmt.Errorf("posting: %w", err)
		}
		fmt.Printf("Posted %s\n", p.ID)
		return nil
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply POST_ID CONTENT",
	Short: "Reply to a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, _ := cmd.Flags().GetString("image")

		a, err := newApp(cmd, "reply", args)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Reply(cmd.Context(), args[0], args[1], image)
		if err != nil {
			return fmt.Errorf("replying: %w", err)
		}
		fmt.Printf("Replied %s\n", p.ID)
		return nil
	},
}

var likeCmd = &cobra.Command{
	Use:   "like POST_ID",
	Short: "Like or unlike a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "like", args)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.ToggleLike(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("toggling like: %w", err)
		}
		state := "Unliked"
		if p.LikedByMe {
			state = "Liked"
		}
		fmt.Printf("%s %s (%d likes)\n", state, p.ID, p.LikeCount)
		return nil
	},
}

// notifications command
var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "List notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		unread, _ := cmd.Flags().GetBool("unread")

		a, err := newApp(cmd, "notifications", args)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.Notifications(cmd.Context(), unread)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No notifications.")
			return nil
		}
		for _, n := range list {
			mark := " "
			if !n.Read {
				mark = "*"
			}
			fmt.Printf("%s %s  %s  %s\n", mark, n.ID, feed.RelativeTime(a.Now(), n.CreatedAt), feed.FormatNotification(n))
		}
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read NOTIFICATION_ID",
	Short: "Mark a notification read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "read", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.MarkRead(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("marking read: %w", err)
		}
		n, err := a.UnreadCount(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Marked %s read. %d unread.\n", args[0], n)
		return nil
	},
}

// profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your profile",
}

var profileGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "profile get", args)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Profile(cmd.Context())
		if err != nil {
			return err
		}
		printProfile(p)
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set USERNAME",
	Short: "Update your username and profile image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveProfile(cmd, "profile set", args, (*app.FeedApp).UpdateProfile)
	},
}

var profileRegisterCmd = &cobra.Command{
	Use:   "register USERNAME",
	Short: "Create your profile after signing up",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveProfile(cmd, "profile register", args, (*app.FeedApp).RegisterProfile)
	},
}

func saveProfile(cmd *cobra.Command, operation string, args []string,
	save func(*app.FeedApp, context.Context, string, string) (model.Profile, error)) error {
	image, _ := cmd.Flags().GetString("image")

	a, err := newApp(cmd, operation, args)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := save(a, cmd.Context(), args[0], image)
	if err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	printProfile(p)
	return nil
}

func printProfile(p model.Profile) {
	fmt.Printf("ID:       %s\n", p.UserID)
	fmt.Printf("Username: %s\n", p.Username)
	fmt.Printf("Image:    %s\n", p.ProfileImageURL.Or("(none)"))
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent mutations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history", args)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No mutations recorded.")
			return nil
		}
		for _, r := range recs {
			errText := ""
			if r.Error != "" {
				errText = "  " + r.Error
			}
			fmt.Printf("%s  %-15s  %-12s  %s  %s%s\n",
				r.FinishedAt.Format("2006-01-02 15:04:05"),
				r.Kind,
				r.Outcome,
				r.EntityID,
				r.FinishedAt.Sub(r.StartedAt),
				errText,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Also log to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("api-url", "", "Backend API base URL")

	// profile subcommands
	profileCmd.AddCommand(profileGetCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileRegisterCmd)
	profileSetCmd.Flags().String("image", "", "Path to a new profile image")
	profileRegisterCmd.Flags().String("image", "", "Path to a profile image")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(feedCmd)
	feedCmd.Flags().StringP("query", "q", "", "Only show posts matching the query")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(postCmd)
	postCmd.Flags().String("image", "", "Path to an image to attach")
	rootCmd.AddCommand(replyCmd)
	replyCmd.Flags().String("image", "", "Path to an image to attach")
	rootCmd.AddCommand(likeCmd)
	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.Flags().Bool("unread", false, "Only show unread notifications")
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of mutations to show")
}
