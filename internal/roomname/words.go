package roomname

var adjectives = []string{
	"tiny", "happy", "sleepy", "fluffy", "sparkly", "cheery", "silly", "jolly", "cozy", "shiny",
	"golden", "silver", "crimson", "emerald", "purple", "gentle", "brave", "calm", "swift", "quiet",
	"bouncy", "fuzzy", "plucky", "merry", "peppy", "warm", "sunny", "misty", "lucky", "kind",
}

var animals = []string{
	"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog", "squirrel", "hamster",
	"duckling", "fawn", "lamb", "raccoon", "beaver", "seahorse", "dolphin", "whale", "narwhal", "penguin",
	"flamingo", "pelican", "sparrow", "robin", "toucan", "parrot", "owl", "badger", "lynx", "marmot",
}

var things = []string{
	"teapot", "kettle", "blanket", "lantern", "pebble", "cottage", "porch", "garden", "pancake", "muffin",
	"cocoa", "biscuit", "cupcake", "toffee", "dumpling", "noodle", "meadow", "willow", "maple", "breeze",
	"comet", "orbit", "nebula", "canyon", "harbor", "button", "thimble", "puddle", "sunbeam", "ember",
}
