package spec

// DigitTable maps one MTI position digit to its label.
type DigitTable map[byte]string

// Lookup returns the label for digit d ('0'..'9').
func (t DigitTable) Lookup(d byte) (string, bool) {
	label, ok := t[d]
	return label, ok
}

// MTITables holds the four per-position tables plus the sparse table of full
// message type descriptions.
type MTITables struct {
	Version  DigitTable
	Class    DigitTable
	Function DigitTable
	Origin   DigitTable
	Messages map[string]string
}

// Describe returns the description registered for a full 4-digit MTI.
func (m MTITables) Describe(code string) (string, bool) {
	d, ok := m.Messages[code]
	return d, ok
}

var defaultMTI = MTITables{
	Version: DigitTable{
		'0': "ISO 8583:1987",
		'1': "ISO 8583:1993",
		'2': "ISO 8583:2003",
		'8': "National Use",
		'9': "Private Use",
	},
	Class: DigitTable{
		'1': "Authorization",
		'2': "Financial",
		'3': "File Actions",
		'4': "Reversal/Chargeback",
		'5': "Reconciliation",
		'6': "Administrative",
		'7': "Fee Collection",
		'8': "Network Management",
	},
	Function: DigitTable{
		'0': "Request",
		'1': "Request Response",
		'2': "Advice",
		'3': "Advice Response",
		'4': "Notification",
		'5': "Notification Acknowledgement",
		'6': "Instruction",
		'7': "Instruction Acknowledgement",
	},
	Origin: DigitTable{
		'0': "Acquirer",
		'1': "Acquirer Repeat",
		'2': "Issuer",
		'3': "Issuer Repeat",
		'4': "Other",
		'5': "Other Repeat",
	},
	Messages: map[string]string{
		"0100": "Authorization Request",
		"0110": "Authorization Response",
		"0120": "Authorization Advice",
		"0121": "Authorization Advice Repeat",
		"0130": "Authorization Advice Response",
		"0200": "Financial Transaction Request",
		"0210": "Financial Transaction Response",
		"0220": "Financial Transaction Advice",
		"0221": "Financial Transaction Advice Repeat",
		"0230": "Financial Transaction Advice Response",
		"0320": "File Update Advice",
		"0330": "File Update Advice Response",
		"0400": "Reversal Request",
		"0410": "Reversal Response",
		"0420": "Reversal Advice",
		"0421": "Reversal Advice Repeat",
		"0430": "Reversal Advice Response",
		"0500": "Reconciliation Request",
		"0510": "Reconciliation Response",
		"0520": "Reconciliation Advice",
		"0530": "Reconciliation Advice Response",
		"0600": "Administrative Request",
		"0610": "Administrative Response",
		"0620": "Administrative Advice",
		"0630": "Administrative Advice Response",
		"0800": "Network Management Request",
		"0810": "Network Management Response",
		"0820": "Network Management Advice",
		"0830": "Network Management Advice Response",
		"1100": "Authorization Request",
		"1110": "Authorization Response",
		"1200": "Financial Transaction Request",
		"1210": "Financial Transaction Response",
		"1420": "Reversal Advice",
		"1430": "Reversal Advice Response",
		"1804": "Network Management Request",
		"1814": "Network Management Response",
	},
}

// DefaultMTI returns the built-in MTI tables. The tables are shared.
func DefaultMTI() MTITables {
	return defaultMTI
}
