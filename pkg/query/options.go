package query

// Order - одно звено сортировки запроса
type Order struct {
	// Field - логическое имя поля
	Field string

	// Desc - сортировка по убыванию
	Desc bool
}

// Expand - запрошенное раскрытие навигационной связи
type Expand struct {
	// Path - логическое имя связи (возможно вложенное через /)
	Path string

	// Nested - вложенные опции раскрытия (inner filter/order/page/select)
	// В режиме eager-load игнорируются и попадают в отчет плана
	Nested *Options
}

// Options - клиентские опции динамического запроса
// Поля-указатели различают "не запрошено" и "запрошен ноль/отрицательное"
type Options struct {
	// Filter - выражение фильтра ("Status eq 'active' and Age ge 18")
	Filter string

	// OrderBy - запрошенная сортировка
	OrderBy []Order

	// Skip - число пропускаемых строк
	Skip *int

	// Top - максимальное число возвращаемых строк
	Top *int

	// Count - клиент явно запросил общее количество
	Count bool

	// Select - проекция: логические имена полей
	Select []string

	// Expand - запрошенные раскрытия связей
	Expand []Expand
}

// HasPaging сообщает, запрошена ли пагинация
func (o Options) HasPaging() bool {
	return o.Skip != nil || o.Top != nil
}

// HasShaping сообщает, запрошено ли изменение формы результата
func (o Options) HasShaping() bool {
	return len(o.Select) > 0 || len(o.Expand) > 0
}

// IntPtr - помощник для задания Skip/Top в опциях
func IntPtr(v int) *int {
	return &v
}
