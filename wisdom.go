package askwarren

import "math/rand/v2"

// Quotes are shown while an analysis is running, or when there is nothing to show yet.
var Quotes = []string{
	"Preis ist das, was du bezahlst. Wert ist das, was du bekommst.",
	"Regel Nummer 1: Verliere niemals Geld. Regel Nummer 2: Vergiss niemals Regel Nummer 1.",
	"Sei ängstlich, wenn andere gierig sind. Sei gierig, wenn andere ängstlich sind.",
	"Unsere liebste Haltedauer ist für immer.",
	"Risiko entsteht dann, wenn man nicht weiß, was man tut.",
	"Zeit ist der Freund des wunderbaren Unternehmens, der Feind des mittelmäßigen.",
	"Es dauert 20 Jahre, um einen Ruf aufzubauen, und fünf Minuten, um ihn zu ruinieren.",
	"Investiere nur in das, was du verstehst.",
	"Es ist besser, ein großartiges Unternehmen zu einem fairen Preis zu kaufen, als ein faires Unternehmen zu einem großartigen Preis.",
	"Egal wie groß das Talent oder die Anstrengung ist, manche Dinge brauchen einfach Zeit. Man kann kein Baby in einem Monat produzieren, indem man neun Frauen schwängert.",
}

// LoadingQuote is displayed while the oracle is thinking.
const LoadingQuote = "„Der kluge Investor ist ein Realist, der an Optimisten verkauft und von Pessimisten kauft.“"

// RandomQuote picks one of Quotes.
func RandomQuote() string { return Quotes[rand.IntN(len(Quotes))] }
