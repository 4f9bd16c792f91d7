package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leetsync/leetsync/internal/api"
	"github.com/leetsync/leetsync/internal/leetcode"
)

var ClientCmd = cobra.Command{
	Use: "client",
}

func init() {
	// Authentication.
	authCmd := cobra.Command{
		Use:  "auth",
		RunE: wrapClientMain(authMain),
	}
	authCmd.Flags().String("token", "", "")
	authCmd.Flags().String("owner", "", "")
	authCmd.Flags().String("repo", "", "")
	authCmd.Flags().String("branch", "", "")
	authCmd.MarkFlagRequired("token")
	authCmd.MarkFlagRequired("owner")
	authCmd.MarkFlagRequired("repo")
	ClientCmd.AddCommand(&authCmd)
	//
	ClientCmd.AddCommand(&cobra.Command{
		Use:  "status",
		RunE: wrapClientMain(statusMain),
	})
	// Queue.
	ClientCmd.AddCommand(&cobra.Command{
		Use:  "queue",
		RunE: wrapClientMain(queueMain),
	})
	ClientCmd.AddCommand(&cobra.Command{
		Use:  "process",
		RunE: wrapClientMain(processMain),
	})
	retryCommitCmd := cobra.Command{
		Use:  "retry-commit",
		RunE: wrapClientMain(retryCommitMain),
	}
	retryCommitCmd.Flags().Int64("id", 0, "")
	retryCommitCmd.MarkFlagRequired("id")
	ClientCmd.AddCommand(&retryCommitCmd)
	//
	deleteCommitCmd := cobra.Command{
		Use:  "delete-commit",
		RunE: wrapClientMain(deleteCommitMain),
	}
	deleteCommitCmd.Flags().Int64("id", 0, "")
	deleteCommitCmd.MarkFlagRequired("id")
	ClientCmd.AddCommand(&deleteCommitCmd)
	// Repositories.
	ClientCmd.AddCommand(&cobra.Command{
		Use:  "repos",
		RunE: wrapClientMain(reposMain),
	})
	branchesCmd := cobra.Command{
		Use:  "branches",
		RunE: wrapClientMain(branchesMain),
	}
	branchesCmd.Flags().String("owner", "", "")
	branchesCmd.Flags().String("repo", "", "")
	branchesCmd.MarkFlagRequired("owner")
	branchesCmd.MarkFlagRequired("repo")
	ClientCmd.AddCommand(&branchesCmd)
	// Files.
	upsertFileCmd := cobra.Command{
		Use:  "upsert-file",
		RunE: wrapClientMain(upsertFileMain),
	}
	upsertFileCmd.Flags().String("path", "", "")
	upsertFileCmd.Flags().String("message", "", "")
	upsertFileCmd.Flags().String("content", "", "")
	upsertFileCmd.MarkFlagRequired("path")
	ClientCmd.AddCommand(&upsertFileCmd)
	// Catch-up sync.
	syncCmd := cobra.Command{
		Use:  "sync",
		RunE: wrapClientMain(syncMain),
	}
	syncCmd.Flags().String("username", "", "")
	syncCmd.Flags().Int("limit", 20, "")
	syncCmd.MarkFlagRequired("username")
	ClientCmd.AddCommand(&syncCmd)
}

func authMain(ctx *clientContext) error {
	token := must(ctx.Cmd.Flags().GetString("token"))
	owner := must(ctx.Cmd.Flags().GetString("owner"))
	repo := must(ctx.Cmd.Flags().GetString("repo"))
	branch := must(ctx.Cmd.Flags().GetString("branch"))
	status, err := ctx.Client.Authenticate(context.Background(), api.AuthForm{
		Token:  token,
		Owner:  owner,
		Repo:   repo,
		Branch: branch,
	})
	if err != nil {
		return fmt.Errorf("unable to authenticate: %w", err)
	}
	fmt.Println("Authenticated as:", status.Login)
	return nil
}

func statusMain(ctx *clientContext) error {
	status, err := ctx.Client.Status(context.Background())
	if err != nil {
		return fmt.Errorf("unable to get status: %w", err)
	}
	fmt.Println("Configured:", status.Configured)
	fmt.Println("Processing:", status.Processing)
	fmt.Println("Queue size:", status.QueueSize)
	return nil
}

func queueMain(ctx *clientContext) error {
	queue, err := ctx.Client.ObserveQueue(context.Background())
	if err != nil {
		return fmt.Errorf("unable to get queue: %w", err)
	}
	for _, item := range queue.Items {
		fmt.Printf(
			"%d\t%s\t%s\tretries=%d\t%s\n",
			item.ID, item.Status, item.TitleSlug,
			item.RetryCount, item.LastError,
		)
	}
	return nil
}

func processMain(ctx *clientContext) error {
	status, err := ctx.Client.ProcessQueue(context.Background())
	if err != nil {
		return fmt.Errorf("unable to process queue: %w", err)
	}
	fmt.Println("Queue size:", status.QueueSize)
	return nil
}

func retryCommitMain(ctx *clientContext) error {
	id := must(ctx.Cmd.Flags().GetInt64("id"))
	item, err := ctx.Client.RetryCommit(context.Background(), id)
	if err != nil {
		return fmt.Errorf("unable to retry commit %d: %w", id, err)
	}
	fmt.Println("Commit requeued:", item.RefID)
	return nil
}

func deleteCommitMain(ctx *clientContext) error {
	id := must(ctx.Cmd.Flags().GetInt64("id"))
	item, err := ctx.Client.DeleteCommit(context.Background(), id)
	if err != nil {
		return fmt.Errorf("unable to delete commit %d: %w", id, err)
	}
	fmt.Println("Commit deleted:", item.RefID)
	return nil
}

func reposMain(ctx *clientContext) error {
	repos, err := ctx.Client.ObserveRepos(context.Background())
	if err != nil {
		return fmt.Errorf("unable to list repositories: %w", err)
	}
	for _, repo := range repos.Repos {
		fmt.Printf("%s\t%s\n", repo.FullName, repo.DefaultBranch)
	}
	return nil
}

func branchesMain(ctx *clientContext) error {
	owner := must(ctx.Cmd.Flags().GetString("owner"))
	repo := must(ctx.Cmd.Flags().GetString("repo"))
	branches, err := ctx.Client.ObserveBranches(
		context.Background(), owner, repo,
	)
	if err != nil {
		return fmt.Errorf("unable to list branches: %w", err)
	}
	for _, branch := range branches.Branches {
		fmt.Println(branch)
	}
	return nil
}

func upsertFileMain(ctx *clientContext) error {
	path := must(ctx.Cmd.Flags().GetString("path"))
	message := must(ctx.Cmd.Flags().GetString("message"))
	content := must(ctx.Cmd.Flags().GetString("content"))
	status, err := ctx.Client.UpsertFile(context.Background(), api.UpsertFileForm{
		Path:    path,
		Message: message,
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("unable to commit %q: %w", path, err)
	}
	fmt.Println("Committed:", status.CommitURL)
	return nil
}

// syncMain commits recent accepted submissions missed by daemon.
func syncMain(ctx *clientContext) error {
	username := must(ctx.Cmd.Flags().GetString("username"))
	limit := must(ctx.Cmd.Flags().GetInt("limit"))
	cfg, err := getConfig(ctx.Cmd)
	if err != nil {
		return err
	}
	endpoint := cfg.LeetCode.Endpoint
	if len(endpoint) == 0 {
		endpoint = leetcodeEndpoint
	}
	var options []leetcode.ClientOption
	if cfg.LeetCode.Session != nil {
		session, err := cfg.LeetCode.Session.Secret()
		if err != nil {
			return err
		}
		options = append(options, leetcode.WithSession(session))
	}
	client := leetcode.NewClient(endpoint, options...)
	recent, err := client.RecentSubmissions(
		context.Background(), username, limit,
	)
	if err != nil {
		return fmt.Errorf("unable to list submissions: %w", err)
	}
	for _, item := range recent {
		if !item.Accepted() {
			continue
		}
		id, err := strconv.ParseInt(item.ID, 10, 64)
		if err != nil {
			continue
		}
		submission, err := client.SubmissionDetails(context.Background(), id)
		if err != nil {
			return fmt.Errorf("unable to fetch submission %d: %w", id, err)
		}
		result, err := ctx.Client.CreateSubmission(
			context.Background(), submission,
		)
		if err != nil {
			return fmt.Errorf("unable to sync %q: %w", item.TitleSlug, err)
		}
		switch {
		case result.Skipped:
			fmt.Printf("%s: skipped\n", item.TitleSlug)
		case result.Queued:
			fmt.Printf("%s: queued\n", item.TitleSlug)
		default:
			fmt.Printf("%s: %s\n", item.TitleSlug, result.CommitURL)
		}
		time.Sleep(time.Second)
	}
	return nil
}

type clientContext struct {
	Cmd    *cobra.Command
	Args   []string
	Client *api.Client
}

func wrapClientMain(fn func(*clientContext) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := clientContext{
			Cmd:  cmd,
			Args: args,
		}
		config, err := getConfig(cmd)
		if err != nil {
			return err
		}
		transport := http.Transport{
			DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", config.SocketFile)
			},
		}
		ctx.Client = api.NewClient("http://server/socket", api.WithTransport(&transport))
		return fn(&ctx)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
