package fimcp

// testSubjects are the provider's documented sandbox accounts. Each maps a
// subject handle to the scenario its dataset represents.
var testSubjects = map[string]string{
	"2222222222": "All assets connected - Large mutual fund portfolio",
	"3333333333": "All assets connected - Small mutual fund portfolio",
	"4444444444": "Multiple bank accounts and EPF",
	"7777777777": "Debt-Heavy Low Performer",
	"8888888888": "SIP Samurai - Monthly SIP investor",
	"1313131313": "Balanced Growth Tracker - Well diversified",
	"1616161616": "Early Retirement Dreamer - High savings rate",
}

// IsKnownSubject reports whether the subject is one of the provider's
// documented sandbox accounts.
func IsKnownSubject(subject string) bool {
	_, ok := testSubjects[subject]
	return ok
}

// DescribeSubject returns the scenario description for a known sandbox
// subject, or empty for unknown subjects.
func DescribeSubject(subject string) string {
	return testSubjects[subject]
}
