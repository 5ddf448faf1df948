package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sailsonlabs/pulse/internal/api"
	"github.com/sailsonlabs/pulse/internal/svcctx"
	"github.com/sailsonlabs/pulse/internal/usage"
)

// UsageSummaryEndpoint handles GET /api/usage/summary.
type UsageSummaryEndpoint struct{}

var _ api.Endpoint = (*UsageSummaryEndpoint)(nil)

func (e *UsageSummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/usage/summary", e.handler
}

func (e *UsageSummaryEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Summarize model usage
//	@Description	Aggregate calls, tokens, and cost per provider for the caller
//	@Tags			usage
//	@Produce		json
//	@Success		200	{object}	usage.Summary
//	@Router			/api/usage/summary [get]
func (e *UsageSummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.UsageFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "usage store not initialized")
		return
	}

	summary, err := store.Summarize(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (e *UsageSummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize model usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL()).WithOwner(owner)
			var summary usage.Summary
			if err := client.Get(cmd.Context(), "/api/usage/summary", &summary); err != nil {
				return err
			}
			fmt.Printf("Calls:  %d\n", summary.TotalCalls)
			fmt.Printf("Tokens: %d\n", summary.TotalTokens)
			fmt.Printf("Cost:   $%.4f\n", summary.TotalCost)
			for name, p := range summary.ByProvider {
				fmt.Printf("  %s: %d calls, %d tokens, $%.4f\n", name, p.Calls, p.Tokens, p.Cost)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner identity (X-Owner header)")
	return cmd
}
