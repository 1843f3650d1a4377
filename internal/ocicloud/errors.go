package ocicloud

import (
	"errors"
	"net/http"

	"github.com/oracle/oci-go-sdk/v65/common"
	"go.uber.org/zap"

	"github.com/thinktide/tasks/internal/apperr"
)

// call runs fn as the OCI operation op.
//
// Service failures are logged with their HTTP details and wrapped in an
// [apperr.ServiceError] carrying the scalar values of args. A 404 also matches
// [apperr.ErrPullRequestNotFound] or [apperr.ErrRepositoryNotFound] through
// notFound when set. Other failures are logged and returned as-is.
func call(logger *zap.Logger, op string, args map[string]any, notFound error, fn func() error) error {
	logger.Debug("oci call", zap.String("operation", op), zap.Any("args", args))

	err := fn()
	if err == nil {
		return nil
	}

	if svcErr, ok := common.IsServiceError(err); ok {
		logger.Error("OCI service error in "+op+": "+svcErr.GetMessage(),
			zap.Int("status", svcErr.GetHTTPStatusCode()),
			zap.String("code", svcErr.GetCode()),
			zap.String("operation", op),
			zap.String("opc_request_id", svcErr.GetOpcRequestID()),
		)

		wrapped := &apperr.ServiceError{
			Operation:    op,
			Status:       svcErr.GetHTTPStatusCode(),
			Code:         svcErr.GetCode(),
			OpcRequestID: svcErr.GetOpcRequestID(),
			Context:      apperr.ScalarContext(args),
			Err:          err,
		}
		if notFound != nil && svcErr.GetHTTPStatusCode() == http.StatusNotFound {
			return errors.Join(notFound, wrapped)
		}
		return wrapped
	}

	logger.Error("unexpected error in "+op, zap.Error(err))
	return err
}
