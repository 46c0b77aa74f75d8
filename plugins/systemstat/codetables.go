package systemstat

// Code table names.
const (
	DictSystemdEnabled    = "systemd_is_enabled"
	DictSystemdActive     = "systemd_is_active"
	DictProcessExceptions = "process_exceptions"
)

// Process lookup failures reported in place of a PID.
const (
	pidZombie       = -1
	pidAccessDenied = -2
	pidNotFound     = -3
)

// CodeEntry maps a numeric value to its label.
type CodeEntry struct {
	Code  int
	Label string
}

// CodeTable is a named dictionary of codes.
type CodeTable struct {
	Name    string
	Entries []CodeEntry
}

// States from systemctl(1), is-enabled and is-active output.
var systemdEnabled = []CodeEntry{
	{0, "enabled"},
	{1, "enabled-runtime"},
	{2, "linked"},
	{3, "linked-runtime"},
	{4, "alias"},
	{5, "masked"},
	{6, "masked-runtime"},
	{7, "static"},
	{8, "indirect"},
	{9, "disabled"},
	{10, "generated"},
	{11, "transient"},
	{12, "bad"},
	{13, "not-found"},
}

var systemdActive = []CodeEntry{
	{0, "inactive"},
	{1, "maintenance"},
	{2, "active"},
	{3, "deactivating"},
	{4, "failed"},
	{5, "error"},
	{6, "reloading"},
	{7, "not-found"},
}

var processExceptions = []CodeEntry{
	{pidZombie, "ZombieProcess"},
	{pidAccessDenied, "AccessDenied"},
	{pidNotFound, "NoSuchProcess"},
}

// CodeTables returns the dictionaries the catalog's values refer to.
func CodeTables() []CodeTable {
	return []CodeTable{
		{Name: DictSystemdEnabled, Entries: append([]CodeEntry(nil), systemdEnabled...)},
		{Name: DictSystemdActive, Entries: append([]CodeEntry(nil), systemdActive...)},
		{Name: DictProcessExceptions, Entries: append([]CodeEntry(nil), processExceptions...)},
	}
}

// codeOf returns the code of label in table, or notFound.
func codeOf(table []CodeEntry, label string, notFound int) int {
	for _, e := range table {
		if e.Label == label {
			return e.Code
		}
	}
	return notFound
}
