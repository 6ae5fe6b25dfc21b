package query

import (
	"fmt"
	"strconv"
)

// BuildPlan строит план запроса из базового конвейера и клиентских опций
// Применяет по порядку: фильтр, сортировку, пагинацию, планирование
// подсчета. Ни один запрос на этом этапе не выполняется
// Политика применяется мягко: запрещенная возможность отбрасывается
// с записью в отчет, никогда не ошибкой
func BuildPlan(base *Statement, opts Options, pol *Policy, forceCount bool) (*Plan, error) {
	if base == nil {
		return nil, fmt.Errorf("base statement is nil")
	}

	policy := DefaultPolicy()
	if pol != nil {
		policy = *pol
	}

	plan := &Plan{
		Items:   base.Clone(),
		Options: opts,
		Policy:  policy,
		skip:    -1,
		top:     -1,
	}

	plan.applyFilter(opts)
	plan.applyOrder(opts)
	plan.applyPaging(opts)
	plan.scheduleCount(opts, forceCount)

	return plan, nil
}

// applyFilter применяет клиентский фильтр к items-pipeline
func (p *Plan) applyFilter(opts Options) {
	if opts.Filter == "" {
		return
	}
	if !p.Policy.AllowFilter {
		p.report(ReportFilterIgnored, opts.Filter)
		return
	}

	expr, err := ParseFilter(opts.Filter)
	if err != nil {
		p.report(ReportFilterInvalid, err.Error())
		return
	}
	cond, args, err := compileFilter(expr, p.Items.Table())
	if err != nil {
		p.report(ReportFilterInvalid, err.Error())
		return
	}
	p.Items.Where(cond, args...)
}

// applyOrder применяет клиентскую сортировку
func (p *Plan) applyOrder(opts Options) {
	if len(opts.OrderBy) == 0 {
		return
	}
	if !p.Policy.AllowOrder {
		p.report(ReportOrderByIgnored, "")
		return
	}

	var applied []Order
	for _, o := range opts.OrderBy {
		if !p.Policy.OrderColumnAllowed(o.Field) {
			p.report(ReportOrderColumnNotListed, o.Field)
			continue
		}
		if _, ok := p.Items.Table().Column(o.Field); !ok {
			p.report(ReportUnknownField, o.Field)
			continue
		}
		applied = append(applied, o)
	}
	if len(applied) > 0 {
		p.Items.OrderBy(applied...)
	}
}

// applyPaging применяет skip/top с учетом потолков политики
func (p *Plan) applyPaging(opts Options) {
	skip := -1
	if opts.Skip != nil {
		if *opts.Skip < 0 {
			p.report(ReportNegativeSkipIgnored, strconv.Itoa(*opts.Skip))
		} else {
			skip = *opts.Skip
		}
	}

	top := -1
	if opts.Top != nil {
		if *opts.Top < 0 {
			p.report(ReportNegativeTopIgnored, strconv.Itoa(*opts.Top))
		} else {
			top = *opts.Top
		}
	}

	// Top по умолчанию из политики, когда клиент его не задал
	if top < 0 && p.Policy.ServerDefaultPageSize > 0 {
		top = p.Policy.ServerDefaultPageSize
	}
	if top >= 0 && p.Policy.MaxPageSize > 0 && top > p.Policy.MaxPageSize {
		p.report(ReportTopClamped, strconv.Itoa(top))
		top = p.Policy.MaxPageSize
	}

	if skip < 0 && top < 0 {
		return
	}
	p.skip = skip
	p.top = top
	p.Items.Page(top, skip)
}

// scheduleCount решает, выполнять ли подсчет общего количества
// Подсчет планируется при forceCount, явном запросе клиента или
// фактически примененной пагинации - но только если политика
// разрешает подсчет вообще
func (p *Plan) scheduleCount(opts Options, forceCount bool) {
	wanted := forceCount || opts.Count || p.skip >= 0 || p.top >= 0
	if !wanted {
		return
	}
	if !p.Policy.AllowCount {
		p.report(ReportCountNotAllowed, "")
		return
	}

	p.CountRequested = true
	// Count-pipeline разделяет условия items, но не сортировку,
	// пагинацию и eager-load пути
	p.Count = p.Items.Clone()
}
