package spec

// ProfileISO1987 names the built-in binary ISO 8583:1987 table.
const ProfileISO1987 = "iso8583-1987"

func fixed(n int, t DataType, max int, c Category, name string) FieldSpec {
	return FieldSpec{Number: n, Format: Fixed, Type: t, MaxLength: max, Category: c, Name: name}
}

func llvar(n int, t DataType, max int, c Category, name string) FieldSpec {
	return FieldSpec{Number: n, Format: LLVAR, Type: t, MaxLength: max, Category: c, Name: name}
}

func lllvar(n int, t DataType, max int, c Category, name string) FieldSpec {
	return FieldSpec{Number: n, Format: LLLVAR, Type: t, MaxLength: max, Category: c, Name: name}
}

// ISO 8583:1987 with packed numerics. Amount fields typed x+n travel as text.
var iso1987 = newTable(
	fixed(1, Binary, 8, CategoryBitmap, "Secondary Bitmap"),
	llvar(2, Numeric, 19, CategoryAccount, "Primary Account Number"),
	fixed(3, Numeric, 6, CategoryProcessing, "Processing Code"),
	fixed(4, Numeric, 12, CategoryAmount, "Amount, Transaction"),
	fixed(5, Numeric, 12, CategoryAmount, "Amount, Settlement"),
	fixed(6, Numeric, 12, CategoryAmount, "Amount, Cardholder Billing"),
	fixed(7, Numeric, 10, CategoryDateTime, "Transmission Date & Time"),
	fixed(8, Numeric, 8, CategoryAmount, "Amount, Cardholder Billing Fee"),
	fixed(9, Numeric, 8, CategoryAmount, "Conversion Rate, Settlement"),
	fixed(10, Numeric, 8, CategoryAmount, "Conversion Rate, Cardholder Billing"),
	fixed(11, Numeric, 6, CategoryTrace, "System Trace Audit Number"),
	fixed(12, Numeric, 6, CategoryDateTime, "Time, Local Transaction"),
	fixed(13, Numeric, 4, CategoryDateTime, "Date, Local Transaction"),
	fixed(14, Numeric, 4, CategoryCard, "Date, Expiration"),
	fixed(15, Numeric, 4, CategoryDateTime, "Date, Settlement"),
	fixed(16, Numeric, 4, CategoryDateTime, "Date, Conversion"),
	fixed(17, Numeric, 4, CategoryDateTime, "Date, Capture"),
	fixed(18, Numeric, 4, CategoryMerchant, "Merchant Type"),
	fixed(19, Numeric, 3, CategoryNetwork, "Acquiring Institution Country Code"),
	fixed(20, Numeric, 3, CategoryAccount, "PAN Extended, Country Code"),
	fixed(21, Numeric, 3, CategoryNetwork, "Forwarding Institution Country Code"),
	fixed(22, Numeric, 3, CategoryProcessing, "Point of Service Entry Mode"),
	fixed(23, Numeric, 3, CategoryCard, "Application PAN Sequence Number"),
	fixed(24, Numeric, 3, CategoryNetwork, "Network International Identifier"),
	fixed(25, Numeric, 2, CategoryProcessing, "Point of Service Condition Code"),
	fixed(26, Numeric, 2, CategoryProcessing, "Point of Service Capture Code"),
	fixed(27, Numeric, 1, CategoryResponse, "Authorizing Identification Response Length"),
	fixed(28, Alphanumeric, 9, CategoryAmount, "Amount, Transaction Fee"),
	fixed(29, Alphanumeric, 9, CategoryAmount, "Amount, Settlement Fee"),
	fixed(30, Alphanumeric, 9, CategoryAmount, "Amount, Transaction Processing Fee"),
	fixed(31, Alphanumeric, 9, CategoryAmount, "Amount, Settlement Processing Fee"),
	llvar(32, Numeric, 11, CategoryNetwork, "Acquiring Institution Identification Code"),
	llvar(33, Numeric, 11, CategoryNetwork, "Forwarding Institution Identification Code"),
	llvar(34, AlphanumericSpecial, 28, CategoryAccount, "Primary Account Number, Extended"),
	llvar(35, Track, 37, CategoryCard, "Track 2 Data"),
	lllvar(36, Track, 104, CategoryCard, "Track 3 Data"),
	fixed(37, Alphanumeric, 12, CategoryTrace, "Retrieval Reference Number"),
	fixed(38, Alphanumeric, 6, CategoryResponse, "Authorization Identification Response"),
	fixed(39, Alphanumeric, 2, CategoryResponse, "Response Code"),
	fixed(40, Alphanumeric, 3, CategoryCard, "Service Restriction Code"),
	fixed(41, AlphanumericSpecial, 8, CategoryTerminal, "Card Acceptor Terminal Identification"),
	fixed(42, AlphanumericSpecial, 15, CategoryMerchant, "Card Acceptor Identification Code"),
	fixed(43, AlphanumericSpecial, 40, CategoryMerchant, "Card Acceptor Name/Location"),
	llvar(44, Alphanumeric, 25, CategoryResponse, "Additional Response Data"),
	llvar(45, AlphanumericSpecial, 76, CategoryCard, "Track 1 Data"),
	lllvar(46, AlphanumericSpecial, 999, CategoryAdditional, "Additional Data - ISO"),
	lllvar(47, AlphanumericSpecial, 999, CategoryAdditional, "Additional Data - National"),
	lllvar(48, AlphanumericSpecial, 999, CategoryAdditional, "Additional Data - Private"),
	fixed(49, Numeric, 3, CategoryAmount, "Currency Code, Transaction"),
	fixed(50, Numeric, 3, CategoryAmount, "Currency Code, Settlement"),
	fixed(51, Numeric, 3, CategoryAmount, "Currency Code, Cardholder Billing"),
	fixed(52, Binary, 8, CategorySecurity, "Personal Identification Number Data"),
	fixed(53, Numeric, 16, CategorySecurity, "Security Related Control Information"),
	lllvar(54, Alphanumeric, 120, CategoryAmount, "Additional Amounts"),
	lllvar(55, Binary, 255, CategoryCard, "ICC Data"),
	lllvar(56, AlphanumericSpecial, 999, CategoryReserved, "Reserved ISO"),
	lllvar(57, AlphanumericSpecial, 999, CategoryReserved, "Reserved National"),
	lllvar(58, AlphanumericSpecial, 999, CategoryReserved, "Reserved National"),
	lllvar(59, AlphanumericSpecial, 999, CategoryReserved, "Reserved National"),
	lllvar(60, AlphanumericSpecial, 999, CategoryPrivate, "Reserved Private"),
	lllvar(61, AlphanumericSpecial, 999, CategoryPrivate, "Reserved Private"),
	lllvar(62, AlphanumericSpecial, 999, CategoryPrivate, "Reserved Private"),
	lllvar(63, AlphanumericSpecial, 999, CategoryPrivate, "Reserved Private"),
	fixed(64, Binary, 8, CategorySecurity, "Message Authentication Code"),

	fixed(65, Binary, 8, CategoryBitmap, "Extended Bitmap"),
	fixed(66, Numeric, 1, CategoryProcessing, "Settlement Code"),
	fixed(67, Numeric, 2, CategoryProcessing, "Extended Payment Code"),
	fixed(68, Numeric, 3, CategoryNetwork, "Receiving Institution Country Code"),
	fixed(69, Numeric, 3, CategoryNetwork, "Settlement Institution Country Code"),
	fixed(70, Numeric, 3, CategoryNetwork, "Network Management Information Code"),
	fixed(71, Numeric, 4, CategoryTrace, "Message Number"),
	fixed(72, Numeric, 4, CategoryTrace, "Message Number, Last"),
	fixed(73, Numeric, 6, CategoryDateTime, "Date, Action"),
	fixed(74, Numeric, 10, CategoryAmount, "Credits, Number"),
	fixed(75, Numeric, 10, CategoryAmount, "Credits, Reversal Number"),
	fixed(76, Numeric, 10, CategoryAmount, "Debits, Number"),
	fixed(77, Numeric, 10, CategoryAmount, "Debits, Reversal Number"),
	fixed(78, Numeric, 10, CategoryAmount, "Transfer, Number"),
	fixed(79, Numeric, 10, CategoryAmount, "Transfer, Reversal Number"),
	fixed(80, Numeric, 10, CategoryAmount, "Inquiries, Number"),
	fixed(81, Numeric, 10, CategoryAmount, "Authorizations, Number"),
	fixed(82, Numeric, 12, CategoryAmount, "Credits, Processing Fee Amount"),
	fixed(83, Numeric, 12, CategoryAmount, "Credits, Transaction Fee Amount"),
	fixed(84, Numeric, 12, CategoryAmount, "Debits, Processing Fee Amount"),
	fixed(85, Numeric, 12, CategoryAmount, "Debits, Transaction Fee Amount"),
	fixed(86, Numeric, 16, CategoryAmount, "Credits, Amount"),
	fixed(87, Numeric, 16, CategoryAmount, "Credits, Reversal Amount"),
	fixed(88, Numeric, 16, CategoryAmount, "Debits, Amount"),
	fixed(89, Numeric, 16, CategoryAmount, "Debits, Reversal Amount"),
	fixed(90, Numeric, 42, CategoryTrace, "Original Data Elements"),
	fixed(91, Alphanumeric, 1, CategoryAdditional, "File Update Code"),
	fixed(92, Alphanumeric, 2, CategorySecurity, "File Security Code"),
	fixed(93, Alphanumeric, 5, CategoryResponse, "Response Indicator"),
	fixed(94, Alphanumeric, 7, CategoryAdditional, "Service Indicator"),
	fixed(95, Alphanumeric, 42, CategoryAmount, "Replacement Amounts"),
	fixed(96, Binary, 8, CategorySecurity, "Message Security Code"),
	fixed(97, Alphanumeric, 17, CategoryAmount, "Amount, Net Settlement"),
	fixed(98, AlphanumericSpecial, 25, CategoryMerchant, "Payee"),
	llvar(99, Numeric, 11, CategoryNetwork, "Settlement Institution Identification Code"),
	llvar(100, Numeric, 11, CategoryNetwork, "Receiving Institution Identification Code"),
	llvar(101, AlphanumericSpecial, 17, CategoryAdditional, "File Name"),
	llvar(102, AlphanumericSpecial, 28, CategoryAccount, "Account Identification 1"),
	llvar(103, AlphanumericSpecial, 28, CategoryAccount, "Account Identification 2"),
	lllvar(104, AlphanumericSpecial, 100, CategoryAdditional, "Transaction Description"),
	lllvar(105, AlphanumericSpecial, 999, CategoryReserved, "Reserved ISO"),
	lllvar(106, AlphanumericSpecial, 999, CategoryReserved, "Reserved ISO"),
	lllvar(107, AlphanumericSpecial, 999, CategoryReserved, "Reserved ISO"),
	lllvar(108, AlphanumericSpecial, 999, CategoryReserved, "Reserved ISO"),
	lllvar(109, AlphanumericSpecial, 999, CategoryReserved, "Reserved ISO"),
	lllvar(110, AlphanumericSpecial, 999, CategoryReserved, "Reserved ISO"),
	lllvar(111, AlphanumericSpecial, 999, CategoryReserved, "Reserved ISO"),
	lllvar(112, AlphanumericSpecial, 999, CategoryReserved, "Reserved National"),
	lllvar(113, AlphanumericSpecial, 999, CategoryReserved, "Reserved National"),
	lllvar(114, AlphanumericSpecial, 999, CategoryReserved, "Reserved National"),
	lllvar(115, AlphanumericSpecial, 999, CategoryReserved, "Reserved National"),
	lllvar(116, AlphanumericSpecial, 999, CategoryReserved, "Reserved National"),
	lllvar(117, AlphanumericSpecial, 999, CategoryReserved, "Reserved National"),
	lllvar(118, AlphanumericSpecial, 999, CategoryReserved, "Reserved National"),
	lllvar(119, AlphanumericSpecial, 999, CategoryReserved, "Reserved National"),
	lllvar(120, AlphanumericSpecial, 999, CategoryPrivate, "Reserved Private"),
	lllvar(121, AlphanumericSpecial, 999, CategoryPrivate, "Reserved Private"),
	lllvar(122, AlphanumericSpecial, 999, CategoryPrivate, "Reserved Private"),
	lllvar(123, AlphanumericSpecial, 999, CategoryPrivate, "Reserved Private"),
	lllvar(124, AlphanumericSpecial, 999, CategoryPrivate, "Reserved Private"),
	lllvar(125, AlphanumericSpecial, 999, CategoryPrivate, "Reserved Private"),
	lllvar(126, AlphanumericSpecial, 999, CategoryPrivate, "Reserved Private"),
	lllvar(127, AlphanumericSpecial, 999, CategoryPrivate, "Reserved Private"),
	fixed(128, Binary, 8, CategorySecurity, "Message Authentication Code"),
)

func newTable(specs ...FieldSpec) Table {
	t := make(Table, len(specs))
	for _, fs := range specs {
		t[fs.Number] = fs
	}
	return t
}

// ISO1987 returns the built-in field table. The table is shared.
func ISO1987() Table {
	return iso1987
}
