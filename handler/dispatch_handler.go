package handler

import (
	"encoding/json"
	"loan-desk-api/common"
	"loan-desk-api/dispatch"
	"loan-desk-api/logger"
	"loan-desk-api/model"
	"loan-desk-api/obs"
	"net/http"

	"github.com/sirupsen/logrus"
)

// DispatchHandler exposes the function registry over a single logical
// endpoint. Application-level failures ride inside the envelope with HTTP
// 200; only authentication/authorization (401/403) and malformed requests
// (400) use the status code.
type DispatchHandler struct {
	registry *dispatch.Registry
}

func NewDispatchHandler(registry *dispatch.Registry) *DispatchHandler {
	return &DispatchHandler{registry: registry}
}

// Execute godoc
// @Summary      Invoke a registered function
// @Description  validates arguments, executes the named operation and returns its envelope
// @Tags         functions
// @Accept       json
// @Produce      json
// @Param        request  body  model.DispatchRequest  true  "function invocation"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  common.AppError
// @Security     BearerAuth
// @Router       /api/functions [post]
func (h *DispatchHandler) Execute(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return common.NewAppError(http.StatusBadRequest, "Invalid request body", err)
	}
	if req.FunctionName == "" {
		return common.NewAppError(http.StatusBadRequest, "functionName is required", nil)
	}

	args := map[string]any{}
	if len(req.Args) > 0 {
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return common.NewAppError(http.StatusBadRequest, "args must be a JSON object", err)
		}
	}

	requestedTenant := firstString(args, "tenant_id", "tenantId")
	tenantID, appErr := ResolveTenant(r.Context(), requestedTenant)
	if appErr != nil {
		return appErr
	}
	ctx := dispatch.WithTenant(r.Context(), tenantID)

	envelope := h.registry.Execute(ctx, req.FunctionName, args)
	obs.ObserveDispatch(req.FunctionName, envelope.Code())

	if envelope.IsError() {
		logger.Log.WithFields(logrus.Fields{
			"function": req.FunctionName,
			"code":     envelope.Code(),
		}).Warn("Function returned an error envelope")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(envelope)
	return nil
}

func firstString(args map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := args[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
