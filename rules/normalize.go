package rules

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hatsunemiku3939/underwriter/types"
)

// dateTargets are targets whose unreadable values mean the date was not found in the document.
var dateTargets = regexp.MustCompile(`data|tempo`)

// metadataDatesTarget is exempt from the not-found mapping.
const metadataDatesTarget = "metadado_datas"

// notFoundExcerpt is the found excerpt that marks a value absent from the document.
const notFoundExcerpt = "NOT FOUND"

// Normalize runs rule against in and completes its outcome into a CheckResult. The boolean is
// false when the check does not apply. Errors and panics raised by the check become results.
func Normalize(ctx context.Context, rule Rule, in *Input) (res types.CheckResult, ok bool) {
	log := zap.S().Named("rules")
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("check panicked", "check", rule.Name, "document_id", in.Identity.DocumentID, "panic", r)
			res, ok = crashed(rule), true
		}
	}()

	out, err := rule.Check(ctx, in)
	if err != nil {
		code := classify(rule, err)
		log.Warnw("check failed", "check", rule.Name, "document_id", in.Identity.DocumentID,
			"code", code.String(), "error", err)
		out = Verdict(false, 0).Finding("").WithCode(code)
	}
	if out == nil {
		return types.CheckResult{}, false
	}
	return complete(rule, in, out), true
}

func complete(rule Rule, in *Input, out *Outcome) types.CheckResult {
	target := out.Target
	if target == "" {
		target = rule.DefaultTarget()
	}

	searched := out.Searched
	if searched == nil {
		searched, _ = in.Reference.Value(target)
	}
	found := out.Found
	if found == nil {
		found, _ = in.Extracted.Value(target)
	}

	percent := 100.0
	if out.PercentMatch != nil {
		percent = *out.PercentMatch
	}
	if percent < 0 {
		percent = 0
	}

	code := out.Code
	switch {
	case code == 0:
		code = derive(out.Valid, found)
	case !code.Known():
		code = types.CodeInternalError
	}

	res := types.CheckResult{
		Valid:           out.Valid,
		Target:          target,
		SearchedExcerpt: searched,
		FoundExcerpt:    found,
		PercentMatch:    percent,
		Code:            code,
		ErrorField:      rule.errorField(),
	}
	if code == types.CodeWaitForDocuments {
		res.Valid = false
		res.SearchedExcerpt = ""
		res.FoundExcerpt = in.Missing()
		res.PercentMatch = 0
	}
	return res
}

// derive picks the code of an outcome that did not set one.
func derive(valid bool, found any) types.ErrorCode {
	if valid {
		return types.CodeOK
	}
	if s, ok := found.(string); ok && strings.ToUpper(s) == notFoundExcerpt {
		return types.CodeNotFound
	}
	if found != nil {
		return types.CodeIncorrect
	}
	return types.CodeInvalid
}

// classify maps a check error to a code. Unreadable values on date targets are NOT_FOUND,
// everything else is INTERNAL_ERROR.
func classify(rule Rule, err error) types.ErrorCode {
	target := rule.DefaultTarget()
	if conversion(err) && dateTargets.MatchString(target) && target != metadataDatesTarget {
		return types.CodeNotFound
	}
	return types.CodeInternalError
}

func conversion(err error) bool {
	var (
		pe *time.ParseError
		ne *strconv.NumError
	)
	return errors.Is(err, ErrConversion) ||
		errors.Is(err, types.ErrFieldMissing) ||
		errors.Is(err, types.ErrFieldType) ||
		errors.As(err, &pe) ||
		errors.As(err, &ne)
}

func crashed(rule Rule) types.CheckResult {
	return types.CheckResult{
		Valid:           false,
		Target:          strings.TrimPrefix(rule.Name, "validacao_"),
		SearchedExcerpt: "",
		FoundExcerpt:    "",
		PercentMatch:    0,
		Code:            types.CodeInternalError,
		ErrorField:      rule.errorField(),
	}
}

// Conversionf returns an error classified as a conversion failure.
func Conversionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConversion, fmt.Sprintf(format, args...))
}
