package packet

// Client → server opcodes.
const (
	C_AUTH        byte = 1 // [S password]
	C_FACTORY     byte = 2 // [D req][blob descriptor][S edit name][S requested name][C allow renaming]
	C_DELETE      byte = 3 // [D req][S name]
	C_PLUGIN_INFO byte = 4 // [D req][S uri]
	C_PHYSICS     byte = 5 // [D req][C count]{param}
	C_QUIT        byte = 6
)

// Server → client opcodes.
const (
	S_HELLO             byte = 100 // [S server][S world][C auth required]
	S_AUTH              byte = 101 // [C ok]
	S_FACTORY_ACK       byte = 102 // [D req][C ok][Q seq][S error]
	S_DELETE_ACK        byte = 103 // [D req][C ok][Q seq][S error]
	S_MUTATION_REJECTED byte = 104 // [Q seq][C kind][S name][S reason]
	S_PLUGIN_INFO       byte = 105 // [D req][C success][H count]{[S name][C scope][S filename][blob config]}
	S_PHYSICS_ACK       byte = 106 // [D req][H rejected]{[S key]}[C count]{param}
)

// MaxPayload is the largest payload a frame can carry.
const MaxPayload = 65533
