package params

const (
	// FieldBits is the default size of the field base p.
	FieldBits = 128
	// RSABits is the default size of the RSA primes; they must exceed the field base.
	RSABits = 256
	// LinearBits is the default size of the safe primes of N̂.
	LinearBits = 512
	// LinearModulusBits is the default size of the safe primes of N.
	LinearModulusBits = 128

	// Servers is the default number of aggregation servers m.
	Servers = 3
	// Threshold is the default security threshold t.
	Threshold = 2

	// primeWindow is the number of rounds per substation for which RSA primes stay cached.
	primeWindow = 4
)
