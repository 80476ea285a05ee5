package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/errors"
	apperrors "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/pkg/errors"
)

// ReconciliationUsecase is the slice of the reconciliation service the
// admin API needs
type ReconciliationUsecase interface {
	Reconcile(ctx context.Context) (*entity.ReconciliationSnapshot, error)
	LatestSnapshot(ctx context.Context) (*entity.ReconciliationSnapshot, error)
	ListProfiles(ctx context.Context, req entity.PaginationParams) (*entity.PaginatedProfilesResponse, error)
	GetProfile(ctx context.Context, id entity.CustomerID) (*entity.UnifiedCustomerProfile, error)
	GetCohort(ctx context.Context, name string) (*entity.CohortMembersResponse, error)
}

type ReconciliationHandler struct {
	usecase ReconciliationUsecase
	logger  *zap.Logger
}

func NewReconciliationHandler(usecase ReconciliationUsecase, logger *zap.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{
		usecase: usecase,
		logger:  logger,
	}
}

// RunReconciliation triggers a run and returns its summary
func (h *ReconciliationHandler) RunReconciliation(c echo.Context) error {
	snapshot, err := h.usecase.Reconcile(c.Request().Context())
	if err != nil {
		return h.respondError(c, err, "Reconciliation failed")
	}

	h.logger.Info("Reconciliation triggered over HTTP",
		zap.String("run_id", snapshot.RunID.String()),
		zap.Int("profile_count", len(snapshot.Profiles)))

	return c.JSON(http.StatusCreated, snapshot.Summary())
}

// GetLatestSnapshot returns the summary of the latest snapshot
func (h *ReconciliationHandler) GetLatestSnapshot(c echo.Context) error {
	snapshot, err := h.usecase.LatestSnapshot(c.Request().Context())
	if err != nil {
		return h.respondError(c, err, "Failed to get snapshot")
	}

	return c.JSON(http.StatusOK, snapshot.Summary())
}

// ListProfiles returns one page of the latest snapshot's profiles
func (h *ReconciliationHandler) ListProfiles(c echo.Context) error {
	var params entity.PaginationParams
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &params); err != nil {
		h.logger.Warn("Invalid pagination parameters", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid pagination parameters",
			"code":  apperrors.ErrInvalidArgument,
		})
	}

	page, err := h.usecase.ListProfiles(c.Request().Context(), params)
	if err != nil {
		return h.respondError(c, err, "Failed to list profiles")
	}

	return c.JSON(http.StatusOK, page)
}

// GetProfile returns one customer's unified profile
func (h *ReconciliationHandler) GetProfile(c echo.Context) error {
	id := c.Param("customerId")

	profile, err := h.usecase.GetProfile(c.Request().Context(), entity.CustomerID(id))
	if err != nil {
		return h.respondError(c, err, "Failed to get profile")
	}

	return c.JSON(http.StatusOK, profile)
}

// GetCohort returns the sorted members of a cohort
func (h *ReconciliationHandler) GetCohort(c echo.Context) error {
	cohort, err := h.usecase.GetCohort(c.Request().Context(), c.Param("name"))
	if err != nil {
		return h.respondError(c, err, "Failed to get cohort")
	}

	return c.JSON(http.StatusOK, cohort)
}

func (h *ReconciliationHandler) respondError(c echo.Context, err error, msg string) error {
	appErr := toAppError(err, msg)
	httpErr := apperrors.ToHTTPError(appErr)

	apperrors.LogError(h.logger, appErr, msg, zap.String("path", c.Path()))

	return c.JSON(httpErr.Code, echo.Map{
		"error": httpErr.Message,
		"code":  appErr.Code(),
	})
}

// toAppError maps domain errors onto application error codes
func toAppError(err error, msg string) *apperrors.AppError {
	var unknown *domainErrors.UnknownCurrencyError
	switch {
	case errors.Is(err, domainErrors.ErrSnapshotNotFound),
		errors.Is(err, domainErrors.ErrProfileNotFound),
		errors.Is(err, domainErrors.ErrCohortNotFound):
		return apperrors.NewAppError(apperrors.ErrNotFound, err.Error(), nil)
	case errors.Is(err, domainErrors.ErrRunInProgress):
		return apperrors.NewAppError(apperrors.ErrConflict, err.Error(), nil)
	case errors.As(err, &unknown),
		errors.Is(err, domainErrors.ErrEmptyRateTable),
		errors.Is(err, domainErrors.ErrInvalidRate),
		errors.Is(err, domainErrors.ErrMissingBaseCurrency),
		errors.Is(err, domainErrors.ErrUnreadableSource),
		errors.Is(err, domainErrors.ErrInvalidMode):
		return apperrors.NewAppError(apperrors.ErrFailedPrecondition, msg, err)
	default:
		return apperrors.Wrap(err, msg)
	}
}
