package query

// ========== Отчет плана ==========

// Коды записей отчета: мягкое применение политики фиксирует
// отброшенные/скорректированные возможности здесь, не ошибками
const (
	ReportFilterIgnored        = "FilterIgnored"
	ReportFilterInvalid        = "FilterInvalid"
	ReportOrderByIgnored       = "OrderByIgnored"
	ReportOrderColumnNotListed = "OrderColumnNotAllowed"
	ReportNegativeSkipIgnored  = "NegativeSkipIgnored"
	ReportNegativeTopIgnored   = "NegativeTopIgnored"
	ReportTopClamped           = "TopClamped"
	ReportCountNotAllowed      = "CountNotAllowed"
	ReportSelectIgnored        = "SelectIgnored"
	ReportExpandIgnored        = "ExpandIgnored"
	ReportExpandPathNotListed  = "ExpandPathNotAllowed"
	ReportExpandTooDeep        = "ExpandTooDeep"
	ReportExpandOptionsIgnored = "ExpandOptionsIgnored"
	ReportUnknownField         = "UnknownField"
)

// ReportEntry - одна запись отчета плана
type ReportEntry struct {
	Code   string
	Detail string
}

// ========== План запроса ==========

// Plan - результат построения запроса: items-pipeline, опциональный
// count-pipeline, примененная политика и отчет о мягком применении
// Записи отчета добавляются без дедупликации: повторное срабатывание
// одного правила видно в отчете столько раз, сколько случилось
type Plan struct {
	// Items - конвейер выборки строк
	Items *Statement

	// Count - конвейер подсчета (условия без пагинации); nil пока
	// подсчет не запланирован
	Count *Statement

	// Options - исходные клиентские опции
	Options Options

	// Policy - примененная политика
	Policy Policy

	// CountRequested - подсчет запланирован к выполнению
	CountRequested bool

	// Shaped - проекция применена; липкий флаг, после установки план
	// легально потребляет только shaped-материализатор
	Shaped bool

	// Report - упорядоченный журнал отброшенных/скорректированных
	// возможностей
	Report []ReportEntry

	// skip/top - фактически примененная пагинация (-1 = нет)
	skip int
	top  int
}

// report добавляет запись отчета
func (p *Plan) report(code, detail string) {
	p.Report = append(p.Report, ReportEntry{Code: code, Detail: detail})
}

// HasReport сообщает, есть ли в отчете запись с данным кодом
func (p *Plan) HasReport(code string) bool {
	for _, e := range p.Report {
		if e.Code == code {
			return true
		}
	}
	return false
}

// AppliedPaging возвращает фактически примененные skip/top (-1 = нет)
func (p *Plan) AppliedPaging() (skip, top int) {
	return p.skip, p.top
}

// PageNumber вычисляет номер страницы: skip/top + 1 при известном
// положительном top, иначе 0 (пагинация не применялась)
func (p *Plan) PageNumber() int {
	if p.top <= 0 {
		return 0
	}
	skip := p.skip
	if skip < 0 {
		skip = 0
	}
	return skip/p.top + 1
}
