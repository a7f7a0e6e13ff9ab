package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marciobastos-droid/propmatch/internal/domain"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the dispatch ledger for a client",
	Run: func(cmd *cobra.Command, _ []string) {
		runHistory(cmd)
	},
}

var historyRespondCmd = &cobra.Command{
	Use:   "respond",
	Short: "Record the client's response on a ledger entry",
	Run: func(cmd *cobra.Command, _ []string) {
		log := newLogger()
		s := mustOpenStore(log)
		defer s.Close()

		id, _ := cmd.Flags().GetString("id")
		response, _ := cmd.Flags().GetString("response")

		if err := s.UpdateResponse(context.Background(), id, domain.ClientResponse(response)); err != nil {
			log.Fatal("updating client response", zap.Error(err))
		}
		log.Info("client response recorded",
			zap.String("entry_id", id),
			zap.String("response", response),
		)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringP("client", "c", "", "client identifier (required)")
	historyCmd.Flags().StringP("response", "r", "", "only entries in this response state (e.g. pending, saved)")
	historyCmd.MarkFlagRequired("client")

	historyRespondCmd.Flags().String("id", "", "ledger entry identifier (required)")
	historyRespondCmd.Flags().StringP("response", "r", "", "new response state (required)")
	historyRespondCmd.MarkFlagRequired("id")
	historyRespondCmd.MarkFlagRequired("response")
	historyCmd.AddCommand(historyRespondCmd)
}

func runHistory(cmd *cobra.Command) {
	log := newLogger()
	s := mustOpenStore(log)
	defer s.Close()

	clientID, _ := cmd.Flags().GetString("client")
	filter, _ := cmd.Flags().GetString("response")

	entries, err := s.ListByClient(context.Background(), clientID)
	if err != nil {
		log.Fatal("listing dispatch history", zap.Error(err))
	}

	shown := 0
	for _, e := range entries {
		if filter != "" && e.ClientResponse != domain.ClientResponse(filter) {
			continue
		}
		shown++

		channel := e.Channel
		if e.Saved() {
			channel = "saved"
		}
		fmt.Printf("%s  %-11s %-8s score %3d (%s) %s sent by %s\n",
			e.SentAt.Format("2006-01-02 15:04"), e.ClientResponse, channel,
			e.MatchScore, e.Compatibility, e.PropertyID, e.SentBy,
		)
		fmt.Printf("    entry %s\n", e.ID)
	}

	log.Info("history listed",
		zap.String("client_id", clientID),
		zap.Int("entries", len(entries)),
		zap.Int("shown", shown),
	)
}
