package seed

// Surnames is used to name demo citizens.
var Surnames = []string{
	"Acharya", "Bhat", "Chandra", "Desai", "Gowda", "Hegde", "Iyer",
	"Jain", "Kamath", "Kulkarni", "Menon", "Murthy", "Nair", "Naidu",
	"Patil", "Pillai", "Prasad", "Rao", "Reddy", "Shetty", "Sharma",
	"Shenoy", "Srinivas", "Subramanian", "Verma",
}

// GivenNames is used to name demo citizens.
var GivenNames = []string{
	"Aarav", "Aditi", "Akash", "Ananya", "Arjun", "Asha", "Deepa",
	"Divya", "Ganesh", "Harish", "Kavya", "Kiran", "Lakshmi", "Manoj",
	"Meera", "Naveen", "Nisha", "Pooja", "Priya", "Rahul", "Ramesh",
	"Ravi", "Rohan", "Sandhya", "Sneha", "Suresh", "Tejas", "Vidya",
	"Vijay", "Vikram",
}
