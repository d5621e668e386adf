package keyword

// Built-in profanity list, covering common terms in several languages. Entries are lower-case and accent-free; text is folded (see FoldText) before matching so accented spellings are caught too.
var BuiltinProfanity = []string{
	// english
	"fuck",
	"fucking",
	"fucker",
	"motherfucker",
	"shit",
	"bullshit",
	"bitch",
	"bastard",
	"asshole",
	"dickhead",
	"cunt",
	"wanker",
	"twat",
	"prick",
	"bollocks",
	"douchebag",
	"jackass",
	// spanish
	"mierda",
	"puta",
	"puto",
	"cabron",
	"pendejo",
	"gilipollas",
	"joder",
	"cono",
	// french
	"merde",
	"putain",
	"connard",
	"connasse",
	"salope",
	"encule",
	// german
	"scheisse",
	"arschloch",
	"fotze",
	"wichser",
	"hurensohn",
	// portuguese
	"caralho",
	"porra",
	"foda-se",
	"filho da puta",
	// italian
	"cazzo",
	"stronzo",
	"vaffanculo",
	"minchia",
	// dutch
	"klootzak",
	"kut",
	"godverdomme",
}
