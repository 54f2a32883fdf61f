package intercept

import (
	"log/slog"
	"net/http"
)

// decision is the outcome of evaluating the responder list for one request.
type decision struct {
	rule      *rule
	resp      *Response
	localPath string
	err       error
}

// preprocess runs every preprocessor in registration order.
func (s *snapshot) preprocess(req *http.Request) {
	for _, ru := range s.preprocessors {
		ru.preprocess(req)
	}
}

// evaluate walks interceptors and path mappings in registration order and
// returns the first rule that answers or fails the request. ok is false when
// no rule claims the request.
func (s *snapshot) evaluate(req *http.Request, logger *slog.Logger) (d decision, ok bool) {
	for _, ru := range s.responders {
		switch ru.kind {
		case KindInterceptor:
			resp, err := ru.intercept(req)
			if err != nil {
				return decision{rule: ru, err: err}, true
			}
			if resp != nil {
				return decision{rule: ru, resp: resp}, true
			}

		case KindPathMapping:
			resp, file, err := ru.mapping.resolve(req)
			if err != nil {
				logger.Debug("path mapping rejected",
					"rule", ru.handle,
					"base", ru.mapping.base,
					"url", req.URL.String(),
					"error", err,
				)
				continue
			}
			if resp != nil {
				return decision{rule: ru, resp: resp, localPath: file}, true
			}
		}
	}
	return decision{}, false
}
