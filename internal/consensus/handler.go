package consensus

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openaudio/discovery-indexer/internal/store"
)

// Handler serves the status endpoints peers hit during their own
// consensus checks, plus the checkpoint listing operators use.
type Handler struct {
	store store.Store
}

// NewHandler creates the status API handler.
func NewHandler(st store.Store) *Handler {
	return &Handler{store: st}
}

// Register mounts the routes on a gin engine.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/indexing/transaction_status", h.transactionStatus)
	r.GET("/indexing/checkpoints", h.checkpoints)
}

// health reports liveness plus each stream's last committed height, so
// an operator or load balancer can judge block lag against the chain
// tip it knows about.
func (h *Handler) health(c *gin.Context) {
	cps, err := h.store.ListCheckpoints(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "unhealthy", "error": "failed to list checkpoints"})
		return
	}

	heights := make(gin.H, len(cps))
	for _, cp := range cps {
		heights[cp.Tablename] = cp.LastCheckpoint
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checkpoints": heights})
}

// transactionStatus reports this node's verdict on a transaction:
// FAILED when it sits in the local skip ledger, PASSED otherwise.
func (h *Handler) transactionStatus(c *gin.Context) {
	blocknumber, err := strconv.ParseUint(c.Query("blocknumber"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid blocknumber"})
		return
	}
	blockhash := c.Query("blockhash")
	txhash := c.Query("txhash")
	if blockhash == "" || txhash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "blockhash and txhash are required"})
		return
	}

	skip, err := h.store.GetSkipped(c.Request.Context(), blocknumber, blockhash, txhash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query skip ledger"})
		return
	}

	status := StatusPassed
	if skip != nil {
		status = StatusFailed
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (h *Handler) checkpoints(c *gin.Context) {
	cps, err := h.store.ListCheckpoints(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list checkpoints"})
		return
	}

	out := make([]gin.H, 0, len(cps))
	for _, cp := range cps {
		out = append(out, gin.H{
			"tablename":       cp.Tablename,
			"last_checkpoint": cp.LastCheckpoint,
			"updated_at":      cp.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"checkpoints": out})
}
