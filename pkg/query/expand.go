package query

import (
	"fmt"
	"strings"

	"github.com/queuebridge/dbcore/pkg/metadata"
)

// ErrShapedPlan - shaped план передан типизированному потребителю
var ErrShapedPlan = fmt.Errorf("shaped plan cannot be consumed by the typed materializer")

// ApplyExpandAsInclude прикрепляет запрошенные раскрытия как eager-load
// пути items-pipeline. Только для типизированного потребления: к
// count-pipeline пути не прикрепляются, вложенные опции раскрытия
// игнорируются с записью в отчет
func ApplyExpandAsInclude(plan *Plan, meta metadata.Provider) (*Plan, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan is nil")
	}
	if plan.Shaped {
		return nil, ErrShapedPlan
	}
	if len(plan.Options.Expand) == 0 {
		return plan, nil
	}
	if !plan.Policy.AllowExpand {
		plan.report(ReportExpandIgnored, "")
		return plan, nil
	}

	for _, exp := range plan.Options.Expand {
		if exp.Nested != nil {
			// Inner filter/order/page/select не действуют в режиме eager-load
			plan.report(ReportExpandOptionsIgnored, exp.Path)
		}
		if !plan.Policy.ExpandPathAllowed(exp.Path) {
			plan.report(ReportExpandPathNotListed, exp.Path)
			continue
		}
		if depth := strings.Count(exp.Path, "/") + 1; plan.Policy.MaxExpandDepth > 0 && depth > plan.Policy.MaxExpandDepth {
			plan.report(ReportExpandTooDeep, exp.Path)
			continue
		}

		attachInclude(plan, meta, exp.Path)
	}

	return plan, nil
}

// attachInclude разрешает путь раскрытия в связь и прикрепляет ее
// как eager-load путь items-pipeline. Возвращает false с записью
// в отчет, если путь не разрешается в известную связь
func attachInclude(plan *Plan, meta metadata.Provider, path string) bool {
	// Вложенные пути (A/B) раскрываются только на первый сегмент:
	// глубокий eager-load через связи второго уровня не поддержан
	segment := path
	if i := strings.Index(segment, "/"); i >= 0 {
		segment = segment[:i]
	}

	rel, ok := plan.Items.Table().Relation(segment)
	if !ok {
		plan.report(ReportUnknownField, path)
		return false
	}
	target, err := meta.Table(rel.Target)
	if err != nil {
		plan.report(ReportUnknownField, rel.Target)
		return false
	}
	plan.Items.AddInclude(Include{Relation: rel, Target: target})
	return true
}

// ApplySelectExpand применяет shaping к items-pipeline: проекцию select
// и раскрытия expand одновременно. Без select/expand в запросе возвращает
// план без изменений. Раскрытия прикрепляются как eager-load пути, их
// строки материализуются в Related shaped результата.
// Липкий флаг Shaped ставится только когда shaping фактически применился
func ApplySelectExpand(plan *Plan, meta metadata.Provider) (*Plan, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan is nil")
	}
	if !plan.Options.HasShaping() {
		return plan, nil
	}

	shaped := false

	if len(plan.Options.Select) > 0 {
		if !plan.Policy.AllowSelect {
			plan.report(ReportSelectIgnored, strings.Join(plan.Options.Select, ","))
		} else {
			var fields []string
			for _, field := range plan.Options.Select {
				if _, ok := plan.Items.Table().Column(field); !ok {
					plan.report(ReportUnknownField, field)
					continue
				}
				fields = append(fields, field)
			}
			if len(fields) > 0 {
				plan.Items.Project(fields...)
				shaped = true
			}
		}
	}

	if len(plan.Options.Expand) > 0 {
		if !plan.Policy.AllowExpand {
			plan.report(ReportExpandIgnored, "")
		} else if !expandClauseAllowed(plan) {
			plan.report(ReportExpandPathNotListed, expandClause(plan.Options.Expand))
		} else {
			for _, exp := range plan.Options.Expand {
				if exp.Nested != nil {
					plan.report(ReportExpandOptionsIgnored, exp.Path)
				}
				if attachInclude(plan, meta, exp.Path) {
					shaped = true
				}
			}
		}
	}

	if shaped {
		plan.Shaped = true
	}
	return plan, nil
}

// expandClauseAllowed валидирует полную клаузу раскрытия против allow-list
// Вся клауза должна пройти целиком, иначе раскрытие отбрасывается
func expandClauseAllowed(plan *Plan) bool {
	for _, exp := range plan.Options.Expand {
		if !plan.Policy.ExpandPathAllowed(exp.Path) {
			return false
		}
		if depth := strings.Count(exp.Path, "/") + 1; plan.Policy.MaxExpandDepth > 0 && depth > plan.Policy.MaxExpandDepth {
			return false
		}
	}
	return true
}

func expandClause(expands []Expand) string {
	paths := make([]string, len(expands))
	for i, exp := range expands {
		paths[i] = exp.Path
	}
	return strings.Join(paths, ",")
}
