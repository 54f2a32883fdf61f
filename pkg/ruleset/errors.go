package ruleset

import (
	"errors"

	"github.com/jingkaihe/httpintercept/pkg/intercept"
)

var (
	ErrLoadRules       = errors.New("load rules")
	ErrParseRules      = errors.New("parse rules")
	ErrUnknownRuleType = errors.New("unknown rule type")
	ErrInvalidRule     = errors.New("invalid rule")
	ErrApplyRules      = errors.New("apply rules")
	ErrBlocked         = intercept.ErrBlocked
	ErrReadBodyFile    = errors.New("read body file")
	ErrWatchRules      = errors.New("watch rules")
)
