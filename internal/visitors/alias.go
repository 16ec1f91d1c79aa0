package visitors

import "hash/fnv"

var readerAdjectives = []string{
	"Attentive", "Bookish", "Careful", "Curious", "Diligent", "Eager", "Earnest", "Focused", "Gentle", "Hungry",
	"Idle", "Keen", "Late", "Leisurely", "Loyal", "Mellow", "Midnight", "Nimble", "Patient", "Pensive",
	"Quiet", "Rapid", "Restless", "Sleepy", "Sharp", "Silent", "Steady", "Studious", "Thoughtful", "Wandering",
	"Wistful", "Witty", "Zealous", "Bright", "Calm", "Daring", "Dreamy", "Early", "Frank", "Humble",
}

var readerAnimals = []string{
	"Badger", "Beaver", "Bison", "Crane", "Dolphin", "Falcon", "Ferret", "Finch", "Fox", "Gecko",
	"Heron", "Ibis", "Jackal", "Kestrel", "Koala", "Lark", "Lemur", "Lynx", "Magpie", "Marmot",
	"Mole", "Newt", "Ocelot", "Orca", "Osprey", "Otter", "Owl", "Panda", "Puffin", "Quail",
	"Raven", "Robin", "Salmon", "Seal", "Sparrow", "Stoat", "Swift", "Tapir", "Walrus", "Wren",
}

// Alias returns a stable, human friendly display name for a fingerprint.
func Alias(fingerprint string) string {
	h := fnv.New32a()
	h.Write([]byte(fingerprint))
	index := int(h.Sum32())

	adj := readerAdjectives[index%len(readerAdjectives)]
	animal := readerAnimals[(index/len(readerAdjectives))%len(readerAnimals)]
	return adj + " " + animal
}
