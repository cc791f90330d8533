package catalog

import "github.com/pairprep/backend/internal/room"

var builtin = []Problem{
	{
		ID:          "1",
		Slug:        "two-sum",
		Title:       "Two Sum",
		Difficulty:  Easy,
		Description: "Given an array of integers nums and an integer target, return indices of the two numbers such that they add up to target.",
		Examples: []string{
			"Input: nums = [2,7,11,15], target = 9\nOutput: [0,1]",
			"Input: nums = [3,2,4], target = 6\nOutput: [1,2]",
		},
		Constraints: []string{
			"2 <= nums.length <= 10^4",
			"-10^9 <= nums[i] <= 10^9",
			"Only one valid answer exists.",
		},
		StarterCode: map[room.Language]string{
			room.LangJavaScript: "function twoSum(nums, target) {\n    // Your code here\n}",
			room.LangPython:     "def two_sum(nums, target):\n    # Your code here\n    pass",
			room.LangJava:       "public int[] twoSum(int[] nums, int target) {\n    // Your code here\n}",
			room.LangCPP:        "vector<int> twoSum(vector<int>& nums, int target) {\n    // Your code here\n}",
		},
		Topics: []string{"Array", "Hash Table"},
	},
	{
		ID:          "20",
		Slug:        "valid-parentheses",
		Title:       "Valid Parentheses",
		Difficulty:  Easy,
		Description: "Given a string s containing just the characters '(', ')', '{', '}', '[' and ']', determine if the input string is valid.",
		Examples: []string{
			"Input: s = \"()\"\nOutput: true",
			"Input: s = \"()[]{}\"\nOutput: true",
			"Input: s = \"(]\"\nOutput: false",
		},
		Constraints: []string{
			"1 <= s.length <= 10^4",
			"s consists of parentheses only '()[]{}'.",
		},
		StarterCode: map[room.Language]string{
			room.LangJavaScript: "function isValid(s) {\n    // Your code here\n}",
			room.LangPython:     "def is_valid(s):\n    # Your code here\n    pass",
			room.LangJava:       "public boolean isValid(String s) {\n    // Your code here\n}",
			room.LangCPP:        "bool isValid(string s) {\n    // Your code here\n}",
		},
		Topics: []string{"String", "Stack"},
	},
	{
		ID:          "21",
		Slug:        "merge-two-sorted-lists",
		Title:       "Merge Two Sorted Lists",
		Difficulty:  Easy,
		Description: "You are given the heads of two sorted linked lists list1 and list2. Merge the two lists into one sorted list.",
		Examples: []string{
			"Input: list1 = [1,2,4], list2 = [1,3,4]\nOutput: [1,1,2,3,4,4]",
			"Input: list1 = [], list2 = []\nOutput: []",
		},
		Constraints: []string{
			"The number of nodes in both lists is in the range [0, 50].",
			"-100 <= Node.val <= 100",
		},
		StarterCode: map[room.Language]string{
			room.LangJavaScript: "function mergeTwoLists(list1, list2) {\n    // Your code here\n}",
			room.LangPython:     "def merge_two_lists(list1, list2):\n    # Your code here\n    pass",
			room.LangJava:       "public ListNode mergeTwoLists(ListNode list1, ListNode list2) {\n    // Your code here\n}",
			room.LangCPP:        "ListNode* mergeTwoLists(ListNode* list1, ListNode* list2) {\n    // Your code here\n}",
		},
		Topics: []string{"Linked List", "Recursion"},
	},
	{
		ID:          "121",
		Slug:        "best-time-to-buy-and-sell-stock",
		Title:       "Best Time to Buy and Sell Stock",
		Difficulty:  Easy,
		Description: "You are given an array prices where prices[i] is the price of a given stock on the ith day. Maximize your profit by choosing a single day to buy and different day to sell.",
		Examples: []string{
			"Input: prices = [7,1,5,3,6,4]\nOutput: 5",
			"Input: prices = [7,6,4,3,1]\nOutput: 0",
		},
		Constraints: []string{
			"1 <= prices.length <= 10^5",
			"0 <= prices[i] <= 10^4",
		},
		StarterCode: map[room.Language]string{
			room.LangJavaScript: "function maxProfit(prices) {\n    // Your code here\n}",
			room.LangPython:     "def max_profit(prices):\n    # Your code here\n    pass",
			room.LangJava:       "public int maxProfit(int[] prices) {\n    // Your code here\n}",
			room.LangCPP:        "int maxProfit(vector<int>& prices) {\n    // Your code here\n}",
		},
		Topics: []string{"Array", "Dynamic Programming"},
	},
}
