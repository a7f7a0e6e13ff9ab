package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marciobastos-droid/propmatch/internal/domain"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record or inspect a client's favorite/reject signals on listings",
}

var feedbackFavoriteCmd = &cobra.Command{
	Use:   "favorite",
	Short: "Mark a listing as a favorite for a client",
	Run: func(cmd *cobra.Command, _ []string) {
		runSetFeedback(cmd, domain.FeedbackFavorite)
	},
}

var feedbackRejectCmd = &cobra.Command{
	Use:   "reject",
	Short: "Reject a listing for a client, excluding it from future rankings",
	Run: func(cmd *cobra.Command, _ []string) {
		runSetFeedback(cmd, domain.FeedbackRejected)
	},
}

var feedbackClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the feedback record for a (client, listing) pair",
	Run: func(cmd *cobra.Command, _ []string) {
		log := newLogger()
		s := mustOpenStore(log)
		defer s.Close()

		clientID, _ := cmd.Flags().GetString("client")
		propertyID, _ := cmd.Flags().GetString("property")

		if err := s.DeleteFeedback(context.Background(), clientID, propertyID); err != nil {
			log.Fatal("clearing feedback", zap.Error(err))
		}
		log.Info("feedback cleared",
			zap.String("client_id", clientID),
			zap.String("listing_id", propertyID),
		)
	},
}

var feedbackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a client's feedback records",
	Run: func(cmd *cobra.Command, _ []string) {
		log := newLogger()
		s := mustOpenStore(log)
		defer s.Close()

		clientID, _ := cmd.Flags().GetString("client")

		records, err := s.ListFeedback(context.Background(), clientID)
		if err != nil {
			log.Fatal("listing feedback", zap.Error(err))
		}

		for _, rec := range records {
			fmt.Printf("%-10s %s %s\n", rec.Kind, rec.PropertyID, rec.UpdatedAt.Format("2006-01-02 15:04"))
		}
		log.Info("feedback listed", zap.String("client_id", clientID), zap.Int("count", len(records)))
	},
}

func init() {
	rootCmd.AddCommand(feedbackCmd)

	for _, sub := range []*cobra.Command{feedbackFavoriteCmd, feedbackRejectCmd, feedbackClearCmd} {
		sub.Flags().StringP("client", "c", "", "client identifier (required)")
		sub.Flags().StringP("property", "p", "", "listing identifier (required)")
		sub.MarkFlagRequired("client")
		sub.MarkFlagRequired("property")
		feedbackCmd.AddCommand(sub)
	}

	feedbackListCmd.Flags().StringP("client", "c", "", "client identifier (required)")
	feedbackListCmd.MarkFlagRequired("client")
	feedbackCmd.AddCommand(feedbackListCmd)
}

func runSetFeedback(cmd *cobra.Command, kind domain.FeedbackKind) {
	log := newLogger()
	s := mustOpenStore(log)
	defer s.Close()

	clientID, _ := cmd.Flags().GetString("client")
	propertyID, _ := cmd.Flags().GetString("property")

	if err := s.SetFeedback(context.Background(), clientID, propertyID, kind); err != nil {
		log.Fatal("recording feedback", zap.Error(err))
	}

	log.Info("feedback recorded",
		zap.String("client_id", clientID),
		zap.String("listing_id", propertyID),
		zap.String("kind", string(kind)),
	)
}
