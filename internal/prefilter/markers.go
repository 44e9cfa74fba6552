package prefilter

// explicitMarkers are the fixed multi-locale marker tokens that make a
// message an explicit correction when they start it. Lowercase; prefix
// matched against the lowercased message. French variants cover the
// space-before-colon typography. CJK entries omit the colon because the
// marker is self-delimiting there.
var explicitMarkers = []string{
	"remember:",       // en
	"recuerda:",       // es
	"souviens-toi :",  // fr
	"souviens-toi:",   // fr
	"rappelle-toi :",  // fr
	"rappelle-toi:",   // fr
	"merke:",          // de
	"merk dir:",       // de
	"ricorda:",        // it
	"lembre-se:",      // pt
	"lembra:",         // pt
	"запомни:",        // ru
	"помни:",          // ru
	"zapamiętaj:",     // pl
	"onthoud:",        // nl
	"记住",            // zh-Hans
	"記住",            // zh-Hant
	"覚えて",          // ja
	"기억해",          // ko
	"تذكر:",           // ar
	"याद रखो:",        // hi
	"याद रखें:",       // hi
}

// questionMarks are the terminal question runes across supported scripts.
var questionMarks = map[rune]bool{
	'?':      true, // ASCII
	'？':     true, // fullwidth (CJK)
	'؟':      true, // Arabic
	'⁇':      true, // double question
	'՞':      true, // Armenian
	';': true, // Greek erotimatiko
}

// negationWords veto the question branch when present as standalone words.
// A negated question is usually a correction in disguise, which the anchors
// are better placed to judge.
var negationWords = map[string]bool{
	// en
	"no": true, "not": true, "don't": true, "dont": true, "never": true,
	"stop": true, "wrong": true, "isn't": true, "shouldn't": true,
	// es
	"nunca": true, "mal": true, "incorrecto": true,
	// fr
	"pas": true, "jamais": true, "non": true,
	// de ("nie" shared with pl)
	"nein": true, "nicht": true, "nie": true, "falsch": true,
	// it ("non" shared with fr)
	"mai": true, "sbagliato": true,
	// pt ("não")
	"não": true, "nao": true, "errado": true,
	// ru
	"нет": true, "не": true, "неправильно": true,
	// pl
	"źle": true,
	// nl
	"niet": true, "nooit": true,
	// ar
	"لا": true, "ليس": true,
	// hi
	"नहीं": true, "मत": true,
}

// negationSubstrings cover scripts without word delimiters.
var negationSubstrings = []string{
	"不要", "不对", "不是", "别用", "错了", // zh
	"やめて", "だめ", "違う", "ではなく", // ja
	"하지마", "아니", "틀렸", // ko
}

// noiseSubstrings anywhere in the message mark it as machine output.
var noiseSubstrings = []string{
	"tool_result",
	"tool_use_id",
	"<command-",
	"This session is being continued",
}

// noisePrefixes at the start of the trimmed message mark it as generated
// report text rather than a typed instruction.
var noisePrefixes = []string{
	"Analysis:",
	"**",
	"Caveat: The messages below",
}
