package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenmigration/exchange"
	"tokenmigration/solprogram"
)

var (
	userAddress string

	buildKind   string
	buildAmount string
	buildRaw    uint64
	buildProof  []string

	watchInterval time.Duration
)

func init() {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Show a project's configuration and phase",
		RunE:  runProject,
	}
	balancesCmd := &cobra.Command{
		Use:   "balances",
		Short: "Show a user's balances for a project",
		RunE:  runBalances,
	}
	eligibilityCmd := &cobra.Command{
		Use:   "eligibility",
		Short: "Show which claims a user can submit",
		RunE:  runEligibility,
	}
	deriveCmd := &cobra.Command{
		Use:   "derive",
		Short: "Print a project's program-derived addresses without contacting the ledger",
		RunE:  runDerive,
	}
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build an unsigned migrate or claim transaction",
		RunE:  runBuild,
	}
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a user's balances whenever they change",
		RunE:  runWatch,
	}

	for _, c := range []*cobra.Command{balancesCmd, eligibilityCmd, buildCmd, watchCmd} {
		c.Flags().StringVarP(&userAddress, "user", "u", "", "user wallet address")
	}
	deriveCmd.Flags().StringVarP(&userAddress, "user", "u", "", "also derive this user's migration record")

	buildCmd.Flags().StringVar(&buildKind, "kind", string(solprogram.TxMigrate), "migrate, claim_receipt, claim_proof or claim_refund")
	buildCmd.Flags().StringVar(&buildAmount, "amount", "", "amount in whole tokens, e.g. 12.5")
	buildCmd.Flags().Uint64Var(&buildRaw, "raw-amount", 0, "amount in raw units")
	buildCmd.Flags().StringSliceVar(&buildProof, "proof", nil, "hex merkle proof nodes, comma separated")

	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "poll interval (default from config)")

	rootCmd.AddCommand(projectCmd, balancesCmd, eligibilityCmd, deriveCmd, buildCmd, watchCmd)
}

func parseUser() (solana.PublicKey, error) {
	if userAddress == "" {
		return solana.PublicKey{}, fmt.Errorf("--user is required")
	}
	user, err := solana.PublicKeyFromBase58(userAddress)
	if err != nil {
		return solana.PublicKey{}, solprogram.NewError(solprogram.CodeInvalidAddress,
			fmt.Sprintf("invalid user address %q", userAddress), err)
	}
	return user, nil
}

func runProject(cmd *cobra.Command, _ []string) error {
	if err := requireProject(); err != nil {
		return err
	}
	client, err := newClient(nil)
	if err != nil {
		return err
	}
	view, err := client.LoadProjectState(cmd.Context(), projectID)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), view)
}

func runBalances(cmd *cobra.Command, _ []string) error {
	if err := requireProject(); err != nil {
		return err
	}
	user, err := parseUser()
	if err != nil {
		return err
	}
	client, err := newClient(nil)
	if err != nil {
		return err
	}
	snap, err := client.GetBalances(cmd.Context(), projectID, user, nil)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), snap)
}

func runEligibility(cmd *cobra.Command, _ []string) error {
	if err := requireProject(); err != nil {
		return err
	}
	user, err := parseUser()
	if err != nil {
		return err
	}
	client, err := newClient(nil)
	if err != nil {
		return err
	}
	elig, project, err := client.GetEligibility(cmd.Context(), projectID, user)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), solprogram.EligibilityResponse{
		ClaimEligibility: elig,
		Phase:            project.Phase,
		BestClaim:        solprogram.BestClaimType(elig),
	})
}

func runDerive(cmd *cobra.Command, _ []string) error {
	if err := requireProject(); err != nil {
		return err
	}
	ep, err := cfg.Resolver().Resolve(cfg.Network)
	if err != nil {
		return err
	}
	programID, err := solana.PublicKeyFromBase58(ep.ProgramID)
	if err != nil {
		return err
	}

	addrs, err := solprogram.DeriveProjectAddresses(programID, projectID)
	if err != nil {
		return err
	}
	resp := solprogram.DeriveResponse{ProgramID: programID, ProjectID: projectID, Addresses: addrs}
	if userAddress != "" {
		user, err := parseUser()
		if err != nil {
			return err
		}
		pda, _, err := solprogram.DeriveUserMigrationPDA(programID, projectID, user)
		if err != nil {
			return err
		}
		resp.UserMigration = &pda
	}
	return printJSON(cmd.OutOrStdout(), resp)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	if err := requireProject(); err != nil {
		return err
	}
	user, err := parseUser()
	if err != nil {
		return err
	}
	kind := solprogram.TxKind(buildKind)
	proof, err := parseProofFlag(buildProof)
	if err != nil {
		return err
	}

	client, err := newClient(nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	req := solprogram.BuildRequest{ProjectID: projectID, User: user, Amount: buildRaw, Proof: proof}
	if buildAmount != "" {
		project, err := client.LoadProjectState(ctx, projectID)
		if err != nil {
			return err
		}
		if req.Amount, err = exchange.ParseAmount(buildAmount, solprogram.InputDecimals(kind, project)); err != nil {
			return err
		}
		req.Project = &project
	}

	built, err := client.BuildTransaction(ctx, kind, req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), built)
}

func parseProofFlag(nodes []string) ([][32]byte, error) {
	out := make([][32]byte, 0, len(nodes))
	for i, node := range nodes {
		b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(node), "0x"))
		if err != nil || len(b) != 32 {
			return nil, fmt.Errorf("proof node %d is not 32 hex-encoded bytes", i)
		}
		var n [32]byte
		copy(n[:], b)
		out = append(out, n)
	}
	return out, nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if err := requireProject(); err != nil {
		return err
	}
	user, err := parseUser()
	if err != nil {
		return err
	}
	client, err := newClient(nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	sub, err := client.WatchBalances(ctx, projectID, user, watchInterval, func(snap solprogram.BalanceSnapshot) {
		if err := printJSON(out, snap); err != nil {
			logger.Warn("failed to print snapshot", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	logger.Info("watching balances", zap.String("project", projectID), zap.Stringer("user", user))
	select {
	case <-ctx.Done():
		return nil
	case err := <-sub.Err():
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}
